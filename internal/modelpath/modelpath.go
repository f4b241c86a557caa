// Package modelpath selects a subtree of a decoded model with a dotted path
// such as "items[0].label" or `labels["sub title"]`.
package modelpath

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Segment is one step of a parsed path: either a key or an index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return fmt.Sprintf("[%d]", s.Index)
	}
	return s.Key
}

// Parse splits path into segments. Dots separate keys; brackets hold either
// a numeric index or a quoted key.
func Parse(path string) ([]Segment, error) {
	var segments []Segment
	var key strings.Builder

	flush := func() {
		if key.Len() > 0 {
			segments = append(segments, Segment{Key: key.String()})
			key.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		c := path[i]
		switch c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated bracket in path %q", path)
			}
			inner := strings.TrimSpace(path[i+1 : i+end])
			i += end

			if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
				segments = append(segments, Segment{Key: inner[1 : len(inner)-1]})
				continue
			}
			n, err := strconv.Atoi(inner)
			if err != nil {
				// Unquoted, non-numeric bracket content is a key.
				segments = append(segments, Segment{Key: inner})
				continue
			}
			segments = append(segments, Segment{Index: n, IsIndex: true})
		default:
			key.WriteByte(c)
		}
	}
	flush()

	return segments, nil
}

// Get returns the value at path within model. The second result is false when
// any segment is missing; the first is then nil. An empty path selects model.
func Get(model interface{}, path string) (interface{}, bool) {
	segments, err := Parse(path)
	if err != nil {
		return nil, false
	}

	current := model
	for _, seg := range segments {
		next, ok := step(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func step(value interface{}, seg Segment) (interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		if seg.IsIndex {
			next, ok := v[strconv.Itoa(seg.Index)]
			return next, ok
		}
		next, ok := v[seg.Key]
		return next, ok
	case []interface{}:
		idx, ok := index(seg)
		if !ok || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	case nil:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		key := seg.Key
		if seg.IsIndex {
			key = strconv.Itoa(seg.Index)
		}
		elem := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if !elem.IsValid() {
			return nil, false
		}
		return elem.Interface(), true
	case reflect.Slice, reflect.Array:
		idx, ok := index(seg)
		if !ok || idx < 0 || idx >= rv.Len() {
			return nil, false
		}
		return rv.Index(idx).Interface(), true
	case reflect.Struct:
		if seg.IsIndex {
			return nil, false
		}
		field := rv.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, seg.Key)
		})
		if !field.IsValid() || !field.CanInterface() {
			return nil, false
		}
		return field.Interface(), true
	}

	return nil, false
}

// index accepts numeric keys on sequences, as in "items.0".
func index(seg Segment) (int, bool) {
	if seg.IsIndex {
		return seg.Index, true
	}
	n, err := strconv.Atoi(seg.Key)
	if err != nil {
		return 0, false
	}
	return n, true
}
