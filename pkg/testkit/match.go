package testkit

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Wildcard accepts any non-null value in an expected body.
const Wildcard = "<any>"

// Subset lists where actual departs from expected, looking only at the keys
// expected names. Arrays must match in length.
func Subset(expected, actual any) []string {
	var diffs []string
	subset("$", expected, actual, &diffs)
	return diffs
}

func subset(at string, expected, actual any, diffs *[]string) {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			*diffs = append(*diffs, fmt.Sprintf("%s: want object, got %s", at, describe(actual)))
			return
		}
		for k, ev := range exp {
			av, ok := act[k]
			if !ok {
				*diffs = append(*diffs, fmt.Sprintf("%s.%s: missing", at, k))
				continue
			}
			subset(at+"."+k, ev, av, diffs)
		}
	case []any:
		act, ok := actual.([]any)
		if !ok {
			*diffs = append(*diffs, fmt.Sprintf("%s: want array, got %s", at, describe(actual)))
			return
		}
		if len(exp) != len(act) {
			*diffs = append(*diffs, fmt.Sprintf("%s: want %d elements, got %d", at, len(exp), len(act)))
		}
		for i := range min(len(exp), len(act)) {
			subset(fmt.Sprintf("%s[%d]", at, i), exp[i], act[i], diffs)
		}
	default:
		if expected == Wildcard {
			if actual == nil {
				*diffs = append(*diffs, at+": want a value, got null")
			}
			return
		}
		if !reflect.DeepEqual(expected, actual) {
			*diffs = append(*diffs, fmt.Sprintf("%s: want %s, got %s", at, describe(expected), describe(actual)))
		}
	}
}

func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprint(v)
}

// Lookup walks a decoded JSON document by dotted path; numeric segments
// index arrays ("data.items.0.name").
func Lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
