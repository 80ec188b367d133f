package docstore

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// TimeLayout is a fixed-width UTC layout, so encoded timestamps sort
// lexicographically in chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// normalize converts a caller value into the small set of shapes every
// backend returns: string, bool, int64, float64, time.Time, []any,
// map[string]any and nil.
func normalize(v any, now time.Time) any {
	switch x := v.(type) {
	case nil:
		return nil
	case serverTimestamp:
		return now
	case string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	case time.Time:
		return x.UTC()
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC()
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e, now)
		}
		return out
	case map[string]any:
		return normalizeFields(x, now)
	}
	return v
}

func normalizeFields(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalize(v, now)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		return cloneFields(x)
	}
	return v
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		return int64(x), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x != nil {
			return *x, true
		}
	case string:
		t, err := time.Parse(time.RFC3339Nano, x)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// compareValues orders two field values. ok is false when the values are of
// incomparable kinds.
func compareValues(a, b any) (c int, ok bool) {
	if fa, okA := toFloat(a); okA {
		if fb, okB := toFloat(b); okB {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y), true
		case time.Time:
			return strings.Compare(x, y.UTC().Format(TimeLayout)), true
		}
	case time.Time:
		switch y := b.(type) {
		case time.Time:
			return x.Compare(y), true
		case string:
			return strings.Compare(x.UTC().Format(TimeLayout), y), true
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, true
			case !x:
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func matchesFilter(fields map[string]any, f Filter) bool {
	v, present := fields[f.Field]
	switch f.Op {
	case OpEqual:
		return present && equalValues(v, f.Value)
	case OpNotEqual:
		return present && !equalValues(v, f.Value)
	case OpArrayContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, e := range arr {
			if equalValues(e, f.Value) {
				return true
			}
		}
		return false
	}
	if !present {
		return false
	}
	c, ok := compareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLess:
		return c < 0
	case OpLessEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterEqual:
		return c >= 0
	}
	return false
}

func matches(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matchesFilter(fields, f) {
			return false
		}
	}
	return true
}

// applyQuery filters, orders and limits docs in place. Like Firestore, an
// ordered query drops documents that lack the order field.
func applyQuery(docs []Document, q Query) []Document {
	out := docs[:0]
	for _, d := range docs {
		if !matches(d.Fields, q.Filters) {
			continue
		}
		if q.OrderBy != "" && !d.Has(q.OrderBy) {
			continue
		}
		out = append(out, d)
	}
	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c, _ := compareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func arrayUnion(existing any, value any) []any {
	arr, _ := existing.([]any)
	for _, e := range arr {
		if equalValues(e, value) {
			return arr
		}
	}
	return append(arr, value)
}

func arrayRemove(existing any, value any) []any {
	arr, _ := existing.([]any)
	out := make([]any, 0, len(arr))
	for _, e := range arr {
		if !equalValues(e, value) {
			out = append(out, e)
		}
	}
	return out
}
