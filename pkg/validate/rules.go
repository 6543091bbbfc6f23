package validate

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// check returns an empty string when v passes.
type check func(field, param string, v reflect.Value) string

var rules = map[string]check{
	"required": required,
	"email":    pattern(emailRE, "The %s must be a valid email address."),
	"objectid": pattern(objectIDRE, "The %s must be a valid identifier."),
	"slug":     pattern(slugRE, "The %s may only contain lowercase letters, numbers and hyphens."),
	"url":      validURL,
	"in":       oneOf,
	"min":      size(func(n, limit float64) bool { return n >= limit }, "at least %s", "at least %s items", "at least %s characters"),
	"max":      size(func(n, limit float64) bool { return n <= limit }, "at most %s", "at most %s items", "at most %s characters"),
	"gt":       compare(func(n, limit float64) bool { return n > limit }, "greater than %s"),
	"gte":      compare(func(n, limit float64) bool { return n >= limit }, "greater than or equal to %s"),
	"lt":       compare(func(n, limit float64) bool { return n < limit }, "less than %s"),
	"lte":      compare(func(n, limit float64) bool { return n <= limit }, "less than or equal to %s"),
}

var (
	emailRE    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	objectIDRE = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	slugRE     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// IsObjectID tells a document id apart from a slug.
func IsObjectID(s string) bool { return objectIDRE.MatchString(s) }

func required(field, _ string, v reflect.Value) string {
	if empty(v) {
		return fmt.Sprintf("The %s field is required.", field)
	}
	return ""
}

func pattern(re *regexp.Regexp, format string) check {
	return func(field, _ string, v reflect.Value) string {
		if s, ok := text(v); ok && !re.MatchString(s) {
			return fmt.Sprintf(format, field)
		}
		return ""
	}
}

func validURL(field, _ string, v reflect.Value) string {
	s, ok := text(v)
	if !ok {
		return ""
	}
	if u, err := url.ParseRequestURI(s); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Sprintf("The %s must be a valid URL.", field)
	}
	return ""
}

func oneOf(field, param string, v reflect.Value) string {
	s, ok := text(v)
	if !ok {
		return ""
	}
	for _, opt := range strings.Split(param, ",") {
		if s == strings.TrimSpace(opt) {
			return ""
		}
	}
	return fmt.Sprintf("The selected %s is invalid.", field)
}

// size measures numbers by value, collections by length and strings by rune
// count.
func size(ok func(n, limit float64) bool, number, items, chars string) check {
	return func(field, param string, v reflect.Value) string {
		limit := parseLimit(param)
		v = deref(v)
		switch {
		case !v.IsValid():
			return ""
		case numeric(v):
			if !ok(float(v), limit) {
				return fmt.Sprintf("The %s must be "+number+".", field, param)
			}
		case v.Kind() == reflect.Slice || v.Kind() == reflect.Array || v.Kind() == reflect.Map:
			if !ok(float64(v.Len()), limit) {
				return fmt.Sprintf("The %s must have "+items+".", field, param)
			}
		case v.Kind() == reflect.String:
			if !ok(float64(utf8.RuneCountInString(strings.TrimSpace(v.String()))), limit) {
				return fmt.Sprintf("The %s must be "+chars+".", field, param)
			}
		}
		return ""
	}
}

func compare(ok func(n, limit float64) bool, phrase string) check {
	return func(field, param string, v reflect.Value) string {
		v = deref(v)
		if !v.IsValid() || !numeric(v) {
			return ""
		}
		if !ok(float(v), parseLimit(param)) {
			return fmt.Sprintf("The %s must be "+phrase+".", field, param)
		}
		return ""
	}
}

func text(v reflect.Value) (string, bool) {
	v = deref(v)
	if v.Kind() != reflect.String {
		return "", false
	}
	return v.String(), true
}

func empty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return false
	}
	return numeric(v) && float(v) == 0
}

func numeric(v reflect.Value) bool {
	return v.CanInt() || v.CanUint() || v.CanFloat()
}

func float(v reflect.Value) float64 {
	switch {
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	case v.CanFloat():
		return v.Float()
	}
	return 0
}

func parseLimit(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}
