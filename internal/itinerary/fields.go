package itinerary

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// fieldSet is a decoded JSON object whose known keys are consumed one by one;
// whatever is left over is preserved verbatim.
type fieldSet map[string]json.RawMessage

func splitFields(data []byte) (fieldSet, error) {
	var fields fieldSet
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = fieldSet{}
	}
	return fields, nil
}

// take decodes key into dst and removes it from the set. Missing keys leave dst
// untouched; an explicit null stays in the set so it is echoed back as sent.
func (f fieldSet) take(key string, dst any) error {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil
	}
	delete(f, key)
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

// peek decodes key into dst and keeps the raw value in the set.
func (f fieldSet) peek(key string, dst any) error {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

// field binds a JSON key to its destination. keep leaves the raw value in the
// set, so it is echoed verbatim unless the owning type writes a new value.
type field struct {
	key  string
	dst  any
	keep bool
}

func (f fieldSet) decode(fields ...field) error {
	for _, fd := range fields {
		var err error
		if fd.keep {
			err = f.peek(fd.key, fd.dst)
		} else {
			err = f.take(fd.key, fd.dst)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func (f fieldSet) rest() map[string]json.RawMessage {
	if len(f) == 0 {
		return nil
	}
	return map[string]json.RawMessage(f)
}

// mergeFields encodes extra and known as one object; known keys win.
func mergeFields(extra map[string]json.RawMessage, known map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		out[k] = v
	}
	return json.Marshal(out)
}

func cloneFields(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
