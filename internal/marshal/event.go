package marshal

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cryguy/fnbridge/internal/core"
)

// EventFields lists the guest-visible event properties in projection order.
var EventFields = []string{
	"id", "version", "size", "trigger_class", "trigger_kind", "content_type",
	"body", "timestamp", "path", "url", "method", "shard_id", "num_shards",
	"headers", "fields",
}

// fieldDoc is the tagged document decoded by the shim. T is "date" for
// timestamps and empty otherwise.
type fieldDoc struct {
	T string `json:"t,omitempty"`
	V any    `json:"v"`
}

var emptyObjectDoc = `{"v":{}}`

// EncodeEventField reads one field through the event accessor and encodes
// it for the guest. When a map field cannot be encoded the returned document
// is an empty object and err wraps core.KindMarshal.
func EncodeEventField(ev core.Event, name string) (string, error) {
	var doc fieldDoc
	switch name {
	case "id":
		doc.V = ev.ID()
	case "version":
		doc.V = ev.Version()
	case "size":
		doc.V = ev.Size()
	case "trigger_class":
		doc.V = ev.TriggerClass()
	case "trigger_kind":
		doc.V = ev.TriggerKind()
	case "content_type":
		doc.V = ev.ContentType()
	case "body":
		doc.V = string(ev.Body())
	case "timestamp":
		doc.T = "date"
		doc.V = timestampMillis(ev.Timestamp())
	case "path":
		doc.V = ev.Path()
	case "url":
		doc.V = ev.URL()
	case "method":
		doc.V = ev.Method()
	case "shard_id":
		doc.V = ev.ShardID()
	case "num_shards":
		doc.V = ev.NumShards()
	case "headers":
		return encodeMap(name, ev.Headers())
	case "fields":
		return encodeMap(name, ev.Fields())
	default:
		return "", fmt.Errorf("unknown event field %q", name)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", core.NewError(core.KindMarshal, fmt.Errorf("encoding event %s: %w", name, err))
	}
	return string(data), nil
}

func timestampMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func encodeMap(name string, m map[string]any) (string, error) {
	if m == nil {
		return emptyObjectDoc, nil
	}
	data, err := json.Marshal(fieldDoc{V: m})
	if err != nil {
		return emptyObjectDoc, core.NewError(core.KindMarshal, fmt.Errorf("encoding event %s: %w", name, err))
	}
	return string(data), nil
}

// ParseLogFields turns the JSON object sent by guest logging calls into
// alternating key/value pairs sorted by key. Anything that is not a JSON
// object yields no fields.
func ParseLogFields(fieldsJSON string) []any {
	if fieldsJSON == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(fieldsJSON), &m); err != nil || m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vars := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		vars = append(vars, k, m[k])
	}
	return vars
}

// HeaderMap converts a guest headers object encoded as JSON into string
// values. Non-string values keep their JSON text; nulls are dropped.
func HeaderMap(headersJSON string) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(headersJSON), &raw); err != nil {
		return nil, fmt.Errorf("headers are not a JSON object: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("headers are not a JSON object")
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if string(v) == "null" {
			continue
		}
		var s string
		if len(v) > 0 && v[0] == '"' && json.Unmarshal(v, &s) == nil {
			out[k] = s
			continue
		}
		out[k] = string(v)
	}
	return out, nil
}
