// Package validate checks request payloads against `validate` struct tags.
//
// Rules are comma separated and run in order; the first failure wins:
//
//	type Input struct {
//	    Email string   `json:"email" validate:"required,email"`
//	    Price *float64 `json:"price" validate:"required,gte=0" msg:"Price must be a positive number"`
//	    Items []Item   `json:"items" validate:"required,min=1,dive"`
//	}
//
// `nullable` skips the rest when the field is empty and `dive` walks the
// elements of a slice of structs. Pointers are dereferenced after the
// presence check, so an explicit 0 satisfies `required`. Errors are keyed by
// JSON path ("shippingAddress.city", "items[1].quantity"). A `msg` tag
// replaces the message of every rule on its field.
package validate

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Struct returns field path to message; an empty map means v is valid.
func Struct(v any) map[string]string {
	errs := map[string]string{}
	if rv, ok := structValue(reflect.ValueOf(v)); ok {
		walk(rv, "", errs)
	}
	return errs
}

func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

// List is the response form of errs, ordered by field.
func List(errs map[string]string) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for f, m := range errs {
		out = append(out, FieldError{Field: f, Message: m})
	}
	slices.SortFunc(out, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
	return out
}

type boundRule struct {
	check check
	param string
}

type fieldPlan struct {
	index    int
	name     string
	msg      string
	rules    []boundRule
	nullable bool
	dive     bool
}

// plans caches the parsed tags of each struct type.
var plans sync.Map

func planFor(t reflect.Type) []fieldPlan {
	if p, ok := plans.Load(t); ok {
		return p.([]fieldPlan)
	}
	var out []fieldPlan
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fp := fieldPlan{index: i, name: jsonName(f), msg: f.Tag.Get("msg")}
		for _, r := range splitTag(f.Tag.Get("validate")) {
			key, param, _ := strings.Cut(r, "=")
			switch key {
			case "nullable":
				fp.nullable = true
			case "dive":
				fp.dive = true
			default:
				c, ok := rules[key]
				if !ok {
					panic(fmt.Sprintf("validate: unknown rule %q on %s.%s", key, t.Name(), f.Name))
				}
				fp.rules = append(fp.rules, boundRule{check: c, param: param})
			}
		}
		out = append(out, fp)
	}
	p, _ := plans.LoadOrStore(t, out)
	return p.([]fieldPlan)
}

func walk(rv reflect.Value, prefix string, errs map[string]string) {
	for _, fp := range planFor(rv.Type()) {
		v := rv.Field(fp.index)
		path := prefix + fp.name

		if fp.nullable && empty(v) {
			continue
		}
		if msg := fp.run(path, v); msg != "" {
			errs[path] = msg
			continue
		}
		if inner, ok := structValue(v); ok {
			walk(inner, path+".", errs)
		}
		if !fp.dive {
			continue
		}
		if elems := deref(v); elems.Kind() == reflect.Slice || elems.Kind() == reflect.Array {
			for j := range elems.Len() {
				if inner, ok := structValue(elems.Index(j)); ok {
					walk(inner, fmt.Sprintf("%s[%d].", path, j), errs)
				}
			}
		}
	}
}

func (fp fieldPlan) run(path string, v reflect.Value) string {
	for _, r := range fp.rules {
		if msg := r.check(path, r.param, v); msg != "" {
			if fp.msg != "" {
				return fp.msg
			}
			return msg
		}
	}
	return ""
}

// splitTag keeps the comma-separated values of in= together:
// "required,in=Pending,Shipped,max=10" is [required in=Pending,Shipped max=10].
func splitTag(tag string) []string {
	var out []string
	for _, p := range strings.Split(tag, ",") {
		if p = strings.TrimSpace(p); p == "" {
			continue
		}
		if n := len(out); n > 0 && strings.HasPrefix(out[n-1], "in=") && !isRule(p) {
			out[n-1] += "," + p
			continue
		}
		out = append(out, p)
	}
	return out
}

func isRule(s string) bool {
	key, _, _ := strings.Cut(s, "=")
	_, ok := rules[key]
	return ok || key == "nullable" || key == "dive"
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name[:1]) + f.Name[1:]
	}
	return name
}

func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// structValue skips time.Time, which has nothing to validate inside.
func structValue(v reflect.Value) (reflect.Value, bool) {
	v = deref(v)
	if v.Kind() != reflect.Struct || v.Type().PkgPath() == "time" {
		return reflect.Value{}, false
	}
	return v, true
}
