package marshal

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/cryguy/fnbridge/internal/core"
)

func testEvent() *core.MemoryEvent {
	return &core.MemoryEvent{
		EventID:      "evt-1",
		EventVersion: 1,
		Trigger:      "sync",
		Kind:         "http",
		Type:         "application/json",
		Data:         []byte(`{"x":1}`),
		HeaderMap:    map[string]any{"X-Token": "abc", "X-Count": 3},
		FieldMap:     map[string]any{"q": "go"},
		Time:         time.UnixMilli(1700000000123),
		EventPath:    "/fn",
		EventURL:     "http://localhost/fn?q=go",
		EventMethod:  "POST",
		Shard:        2,
		Shards:       4,
	}
}

func TestEncodeEventField(t *testing.T) {
	ev := testEvent()
	tests := []struct {
		field string
		want  string
	}{
		{"id", `{"v":"evt-1"}`},
		{"version", `{"v":1}`},
		{"size", `{"v":7}`},
		{"trigger_class", `{"v":"sync"}`},
		{"trigger_kind", `{"v":"http"}`},
		{"content_type", `{"v":"application/json"}`},
		{"body", `{"v":"{\"x\":1}"}`},
		{"timestamp", `{"t":"date","v":1700000000123}`},
		{"path", `{"v":"/fn"}`},
		{"url", `{"v":"http://localhost/fn?q=go"}`},
		{"method", `{"v":"POST"}`},
		{"shard_id", `{"v":2}`},
		{"num_shards", `{"v":4}`},
		{"headers", `{"v":{"X-Count":3,"X-Token":"abc"}}`},
		{"fields", `{"v":{"q":"go"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := EncodeEventField(ev, tt.field)
			if err != nil {
				t.Fatalf("EncodeEventField: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeEventFieldCoversProjection(t *testing.T) {
	ev := testEvent()
	for _, name := range EventFields {
		if _, err := EncodeEventField(ev, name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := EncodeEventField(ev, "nope"); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestEncodeEventFieldZeroTimestampAndNilMaps(t *testing.T) {
	ev := &core.MemoryEvent{}
	got, err := EncodeEventField(ev, "timestamp")
	if err != nil || got != `{"t":"date","v":null}` {
		t.Fatalf("timestamp = %s, %v", got, err)
	}
	got, err = EncodeEventField(ev, "headers")
	if err != nil || got != `{"v":{}}` {
		t.Fatalf("headers = %s, %v", got, err)
	}
}

func TestEncodeEventFieldUnencodableMap(t *testing.T) {
	ev := &core.MemoryEvent{FieldMap: map[string]any{"ch": make(chan int)}}
	got, err := EncodeEventField(ev, "fields")
	if got != `{"v":{}}` {
		t.Fatalf("degraded doc = %s", got)
	}
	if kind, ok := core.KindOf(err); !ok || kind != core.KindMarshal {
		t.Fatalf("err = %v, want marshal error", err)
	}
}

func TestParseLogFields(t *testing.T) {
	tests := []struct {
		in   string
		want []any
	}{
		{`{"b":2,"a":"x"}`, []any{"a", "x", "b", float64(2)}},
		{`{}`, []any{}},
		{``, nil},
		{`[1,2]`, nil},
		{`not json`, nil},
		{`null`, nil},
	}
	for _, tt := range tests {
		got := ParseLogFields(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseLogFields(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestHeaderMap(t *testing.T) {
	got, err := HeaderMap(`{"a":"1","b":2,"c":true,"d":null,"e":{"x":1}}`)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"a": "1", "b": "2", "c": "true", "e": `{"x":1}`}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("HeaderMap = %v, want %v", got, want)
	}
	for _, bad := range []string{`[1]`, `null`, `"x"`, `{`} {
		if _, err := HeaderMap(bad); err == nil {
			t.Errorf("HeaderMap(%q) accepted", bad)
		}
	}
}

func TestDecodeOutcomeInlineBytes(t *testing.T) {
	out, err := DecodeOutcome(`{"ok":true,"value":{"kind":"array","length":2,"items":[{"kind":"number","num":201},{"kind":"bytes","byteArray":[104,105]}]}}`)
	if err != nil {
		t.Fatal(err)
	}
	body := out.Value.Items[1]
	if string(body.Bytes) != "hi" {
		t.Fatalf("bytes = %q", body.Bytes)
	}
	if *out.Value.Items[0].Num != 201 {
		t.Fatalf("num = %v", *out.Value.Items[0].Num)
	}
}

func TestDecodeOutcomeRejectsBadBytes(t *testing.T) {
	if _, err := DecodeOutcome(`{"ok":true,"value":{"kind":"bytes","byteArray":[300]}}`); err == nil {
		t.Fatal("out of range byte accepted")
	}
	if _, err := DecodeOutcome(`{`); err == nil {
		t.Fatal("malformed envelope accepted")
	}
}

func TestResolveTransferred(t *testing.T) {
	out, err := DecodeOutcome(`{"ok":true,"value":{"kind":"object","members":{"body":{"kind":"bytes","transferred":true},"status_code":{"kind":"number","num":200}}}}`)
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	err = out.Value.ResolveTransferred(func() ([]byte, error) {
		calls++
		return []byte{1, 2, 3}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("read called %d times", calls)
	}
	if got := out.Value.Member("body").Bytes; !reflect.DeepEqual(got, []byte{1, 2, 3}) {
		t.Fatalf("bytes = %v", got)
	}

	boom := errors.New("boom")
	out.Value.Member("body").Bytes = nil
	if err := out.Value.ResolveTransferred(func() ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestKindTypeName(t *testing.T) {
	if KindArray.TypeName() != "object" || KindNumber.TypeName() != "number" {
		t.Fatal("unexpected type names")
	}
}

func TestEncodedJSON(t *testing.T) {
	s := `{"a":1}`
	v := &Value{Kind: KindObject, JSON: &s}
	if got, err := v.EncodedJSON(); err != nil || got != s {
		t.Fatalf("EncodedJSON = %q, %v", got, err)
	}
	v = &Value{Kind: KindObject, JSONError: "Converting circular structure to JSON"}
	if _, err := v.EncodedJSON(); err == nil || err.Error() != "Converting circular structure to JSON" {
		t.Fatalf("err = %v", err)
	}
	v = &Value{Kind: KindFunction}
	if _, err := v.EncodedJSON(); err == nil {
		t.Fatal("function encoded")
	}
}
