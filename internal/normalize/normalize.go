// Package normalize reduces a handler's return value to a canonical
// response. Every return shape is decided here, in one table.
package normalize

import (
	"fmt"
	"math"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/cryguy/fnbridge/internal/marshal"
)

const (
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"

	minStatus = 100
	maxStatus = 999
)

// Normalize maps v to a response, first match wins:
//
//	Response instance          fields copied through
//	string or bytes            body, text/plain, 200
//	[status, body]             status must be numeric
//	object with a body member  status_code required and numeric
//	number, boolean, ...       Unknown result type
//	other arrays and objects   whole value as JSON
//	undefined or null          empty body, text/plain, 200
//
// Header problems are logged to logger and the headers dropped.
func Normalize(v *marshal.Value, logger core.Logger) *core.Response {
	if v.IsNullish() {
		return &core.Response{StatusCode: 200, ContentType: ContentTypeText}
	}
	switch v.Kind {
	case marshal.KindResponse:
		return structured(v, logger, true)
	case marshal.KindString:
		return text([]byte(v.Str))
	case marshal.KindBytes:
		return text(v.Bytes)
	case marshal.KindArray:
		if v.Length == 2 && len(v.Items) == 2 {
			return pair(v.Items[0], v.Items[1])
		}
		return whole(v)
	case marshal.KindObject:
		if v.Member("body") != nil {
			return structured(v, logger, false)
		}
		return whole(v)
	default:
		return failure(&core.UnknownResultTypeError{TypeName: v.Kind.TypeName()})
	}
}

func text(body []byte) *core.Response {
	resp := &core.Response{StatusCode: 200, ContentType: ContentTypeText}
	resp.SetBody(body)
	return resp
}

func pair(status, body *marshal.Value) *core.Response {
	code, err := statusCode(status)
	if err != nil {
		return failure(err)
	}
	data, ct, err := encodeBody(body)
	if err != nil {
		return failure(err)
	}
	if ct == "" {
		ct = ContentTypeText
	}
	resp := &core.Response{StatusCode: code, ContentType: ct}
	resp.SetBody(data)
	return resp
}

func structured(v *marshal.Value, logger core.Logger, instance bool) *core.Response {
	resp := &core.Response{}

	status := v.Member("status_code")
	switch {
	case instance && status.IsNullish():
		resp.StatusCode = 200
	case status == nil || status.Kind == marshal.KindUndefined:
		return failure(fmt.Errorf("%w: status_code is required", core.ErrInvalidStatusCode))
	default:
		code, err := statusCode(status)
		if err != nil {
			return failure(err)
		}
		resp.StatusCode = code
	}

	data, ct, err := encodeBody(v.Member("body"))
	if err != nil {
		return failure(err)
	}
	resp.SetBody(data)
	resp.ContentType = ct
	if m := v.Member("content_type"); m != nil && m.Kind == marshal.KindString {
		resp.ContentType = m.Str
	}

	if h := v.Member("headers"); !h.IsNullish() {
		headers, err := encodeHeaders(h)
		if err != nil {
			if logger != nil {
				logger.WarnWith("Dropping response headers", "error", err.Error())
			}
		} else {
			resp.Headers = headers
		}
	}
	return resp
}

func whole(v *marshal.Value) *core.Response {
	data, err := v.EncodedJSON()
	if err != nil {
		return failure(fmt.Errorf("%w: %v", core.ErrNotSerializable, err))
	}
	resp := &core.Response{StatusCode: 200, ContentType: ContentTypeJSON}
	resp.SetBody([]byte(data))
	return resp
}

// encodeBody returns the body bytes and the content type implied by the
// body's shape: empty for strings and bytes, JSON otherwise.
func encodeBody(v *marshal.Value) ([]byte, string, error) {
	if v == nil || v.Kind == marshal.KindUndefined {
		return nil, "", nil
	}
	switch v.Kind {
	case marshal.KindString:
		return []byte(v.Str), "", nil
	case marshal.KindBytes:
		return v.Bytes, "", nil
	}
	data, err := v.EncodedJSON()
	if err != nil {
		return nil, "", fmt.Errorf("%w: body: %v", core.ErrNotSerializable, err)
	}
	return []byte(data), ContentTypeJSON, nil
}

func encodeHeaders(v *marshal.Value) (map[string]string, error) {
	data, err := v.EncodedJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding headers: %w", err)
	}
	return marshal.HeaderMap(data)
}

func statusCode(v *marshal.Value) (int, error) {
	if v == nil || v.Kind != marshal.KindNumber || v.Num == nil {
		kind := marshal.KindUndefined
		if v != nil {
			kind = v.Kind
		}
		return 0, fmt.Errorf("%w: %s is not a number", core.ErrInvalidStatusCode, kind)
	}
	n := *v.Num
	if n != math.Trunc(n) || n < minStatus || n > maxStatus {
		return 0, fmt.Errorf("%w: %v", core.ErrInvalidStatusCode, n)
	}
	return int(n), nil
}

func failure(err error) *core.Response {
	return core.ErrorResponse(core.NewError(core.KindNormalization, err))
}
