// Package marshal moves values across the guest boundary. Guest results
// arrive as a JSON envelope produced by the bridge shim; event fields leave
// as small tagged JSON documents the shim decodes.
package marshal

import (
	"encoding/json"
	"fmt"
)

// Kind is the guest-side type tag of a value. Scalar kinds match typeof.
type Kind string

const (
	KindUndefined Kind = "undefined"
	KindNull      Kind = "null"
	KindString    Kind = "string"
	KindNumber    Kind = "number"
	KindBoolean   Kind = "boolean"
	KindBigInt    Kind = "bigint"
	KindSymbol    Kind = "symbol"
	KindFunction  Kind = "function"
	KindBytes     Kind = "bytes"
	KindArray     Kind = "array"
	KindObject    Kind = "object"
	KindResponse  Kind = "response"
)

// TypeName is the name reported in unknown-result errors.
func (k Kind) TypeName() string {
	switch k {
	case KindArray, KindResponse:
		return "object"
	default:
		return string(k)
	}
}

// Value describes one guest value. Only the members relevant to response
// normalization are described structurally; everything else is carried as
// its JSON encoding.
type Value struct {
	Kind Kind `json:"kind"`

	Str  string   `json:"str,omitempty"`
	Num  *float64 `json:"num,omitempty"` // nil when not finite
	Bool bool     `json:"bool,omitempty"`

	// JSON is the JSON.stringify output, nil when the value has none.
	JSON      *string `json:"json,omitempty"`
	JSONError string  `json:"jsonError,omitempty"`

	// Byte bodies either travel inline or through the binary slot.
	ByteArray   []int  `json:"byteArray,omitempty"`
	Transferred bool   `json:"transferred,omitempty"`
	Bytes       []byte `json:"-"`

	Length  int               `json:"length,omitempty"`
	Items   []*Value          `json:"items,omitempty"`
	Members map[string]*Value `json:"members,omitempty"`
}

// Member returns the named member, or nil.
func (v *Value) Member(name string) *Value {
	if v == nil || v.Members == nil {
		return nil
	}
	return v.Members[name]
}

// IsNullish reports undefined or null.
func (v *Value) IsNullish() bool {
	return v == nil || v.Kind == KindUndefined || v.Kind == KindNull
}

// EncodedJSON returns the JSON encoding of v.
func (v *Value) EncodedJSON() (string, error) {
	if v.JSON == nil {
		if v.JSONError != "" {
			return "", fmt.Errorf("%s", v.JSONError)
		}
		return "", fmt.Errorf("%s value has no JSON representation", v.Kind)
	}
	return *v.JSON, nil
}

// GuestError is an exception caught by the shim.
type GuestError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Outcome is the result of one guarded call into guest code.
type Outcome struct {
	OK      bool        `json:"ok"`
	Pending bool        `json:"pending,omitempty"`
	Value   *Value      `json:"value,omitempty"`
	Error   *GuestError `json:"error,omitempty"`
}

// DecodeOutcome parses the shim envelope and inlines byte arrays.
func DecodeOutcome(s string) (*Outcome, error) {
	var out Outcome
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decoding guest outcome: %w", err)
	}
	if out.Value != nil {
		if err := out.Value.inlineBytes(); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func (v *Value) inlineBytes() error {
	if v.Kind == KindBytes && !v.Transferred {
		v.Bytes = make([]byte, len(v.ByteArray))
		for i, b := range v.ByteArray {
			if b < 0 || b > 255 {
				return fmt.Errorf("byte %d out of range: %d", i, b)
			}
			v.Bytes[i] = byte(b)
		}
		v.ByteArray = nil
	}
	for _, it := range v.Items {
		if it != nil {
			if err := it.inlineBytes(); err != nil {
				return err
			}
		}
	}
	for _, m := range v.Members {
		if m != nil {
			if err := m.inlineBytes(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ResolveTransferred fills Bytes of the single transferred byte value in v
// using read. The shim transfers at most one byte body per result.
func (v *Value) ResolveTransferred(read func() ([]byte, error)) error {
	target := v.transferred()
	if target == nil {
		return nil
	}
	data, err := read()
	if err != nil {
		return fmt.Errorf("reading transferred bytes: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	target.Bytes = data
	return nil
}

func (v *Value) transferred() *Value {
	if v == nil {
		return nil
	}
	if v.Kind == KindBytes && v.Transferred {
		return v
	}
	for _, it := range v.Items {
		if t := it.transferred(); t != nil {
			return t
		}
	}
	for _, m := range v.Members {
		if t := m.transferred(); t != nil {
			return t
		}
	}
	return nil
}
