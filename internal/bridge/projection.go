package bridge

import (
	"strconv"
	"strings"
	"sync"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/marshal"
)

type eventEntry struct {
	event core.Event

	mu   sync.Mutex
	memo map[string]string // headers and fields, encoded once per call
}

type contextEntry struct {
	logger core.Logger
}

// hostErrorPrefix marks a failed callback result. Successful results are
// JSON documents or "slot", so they never start with it.
const hostErrorPrefix = "!"

func memoized(name string) bool {
	return name == "headers" || name == "fields"
}

func (e *eventEntry) field(name string, logger core.Logger) (string, error) {
	if !memoized(name) {
		return marshal.EncodeEventField(e.event, name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if doc, ok := e.memo[name]; ok {
		return doc, nil
	}
	doc, err := marshal.EncodeEventField(e.event, name)
	if err != nil {
		if kind, _ := core.KindOf(err); kind != core.KindMarshal {
			return "", err
		}
		logger.WarnWith("Event field degraded to empty object", "field", name, "error", err.Error())
	}
	if e.memo == nil {
		e.memo = make(map[string]string, 2)
	}
	e.memo[name] = doc
	return doc, nil
}

// lookupEvent resolves an event handle of the current call. Guest wrappers
// hold only the nonce and handle, so a wrapper that outlives its call
// resolves to nothing.
func (b *Bridge) lookupEvent(nonce, hs string) (*eventEntry, error) {
	if !b.active(nonce) {
		return nil, core.ErrUninitializedHandle
	}
	h, err := core.ParseHandle(hs)
	if err != nil {
		return nil, err
	}
	entry, ok := b.events.Get(h)
	if !ok {
		return nil, core.ErrUninitializedHandle
	}
	return entry, nil
}

// eventField backs every event property getter.
func (b *Bridge) eventField(nonce, hs, name string) string {
	entry, err := b.lookupEvent(nonce, hs)
	if err != nil {
		return failed(err)
	}
	doc, err := entry.field(name, b.logger)
	if err != nil {
		return failed(err)
	}
	return doc
}

// eventBody backs event.body_bytes. The body goes through the binary slot
// when the engine supports it and as a JSON byte list otherwise.
func (b *Bridge) eventBody(nonce, hs string) string {
	entry, err := b.lookupEvent(nonce, hs)
	if err != nil {
		return failed(err)
	}
	body := entry.event.Body()
	if b.bt != nil {
		if err := b.bt.WriteBinaryToJS(bytesInSlot, body); err != nil {
			return failed(err)
		}
		return "slot"
	}
	return byteList(body)
}

// failed encodes err as a callback result. Callbacks report errors in-band
// so every engine rethrows them the same way.
func failed(err error) string {
	return hostErrorPrefix + err.Error()
}

func byteList(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data)*4 + 2)
	sb.WriteByte('[')
	for i, c := range data {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(c)))
	}
	sb.WriteByte(']')
	return sb.String()
}
