package docstore

import "time"

type Document struct {
	ID     string
	Fields map[string]any
}

func (d Document) Has(field string) bool {
	_, ok := d.Fields[field]
	return ok
}

func (d Document) String(field string) string {
	switch v := d.Fields[field].(type) {
	case string:
		return v
	case *string:
		if v != nil {
			return *v
		}
	}
	return ""
}

// StringPtr returns nil for absent or null fields.
func (d Document) StringPtr(field string) *string {
	v, ok := d.Fields[field]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func (d Document) Bool(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

func (d Document) Int(field string) int64 {
	n, _ := toInt64(d.Fields[field])
	return n
}

func (d Document) Time(field string) time.Time {
	t, _ := toTime(d.Fields[field])
	return t
}

func (d Document) Strings(field string) []string {
	switch v := d.Fields[field].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
