package conditions

import (
	"fmt"
	"reflect"
	"strings"

	"laurels/internal/models"
)

func compare(op models.ComparisonOp, actual any, present bool, expected any) bool {
	if op == models.OpExists {
		return present && actual != nil
	}
	if !present {
		return false
	}

	switch op {
	case models.OpEqual:
		return equalValues(actual, expected)
	case models.OpNotEqual:
		return !equalValues(actual, expected)
	case models.OpContains:
		return contains(actual, expected)
	}

	cmp, ok := order(actual, expected)
	if !ok {
		return false
	}
	switch op {
	case models.OpGreater:
		return cmp > 0
	case models.OpGreaterOrEqual:
		return cmp >= 0
	case models.OpLess:
		return cmp < 0
	case models.OpLessOrEqual:
		return cmp <= 0
	}
	return false
}

// equalValues compares loosely typed values: numbers by value, everything
// else by its printed form.
func equalValues(a, b any) bool {
	if af, ok := models.AsFloat(a); ok {
		if bf, ok := models.AsFloat(b); ok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// order returns -1, 0 or 1 comparing numbers, or strings when either side
// is not numeric. ok is false when the values are not comparable.
func order(a, b any) (int, bool) {
	af, aNum := models.AsFloat(a)
	bf, bNum := models.AsFloat(b)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func contains(haystack, needle any) bool {
	if s, ok := haystack.(string); ok {
		return strings.Contains(s, fmt.Sprint(needle))
	}

	v := reflect.ValueOf(haystack)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if equalValues(v.Index(i).Interface(), needle) {
				return true
			}
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			if equalValues(key.Interface(), needle) {
				return true
			}
		}
	}
	return false
}
