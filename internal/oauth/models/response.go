package models

import (
	"bytes"
	"encoding/json"
)

// Well-known response accumulator keys.
const (
	ResponseKeyCode         = "code"
	ResponseKeyState        = "state"
	ResponseKeyAccessToken  = "access_token"
	ResponseKeyIDToken      = "id_token"
	ResponseKeyRefreshToken = "refresh_token"
	ResponseKeyTokenType    = "token_type"
	ResponseKeyExpiresIn    = "expires_in"
	ResponseKeyScope        = "scope"
)

// Response accumulates outcomes written by validators and builders. Keys are
// unique and keep their first insertion position; a second write replaces the value.
// It is owned by a single request and is not safe for concurrent use.
type Response struct {
	keys   []string
	values map[string]any
}

func NewResponse() *Response {
	return &Response{values: make(map[string]any)}
}

// Set stores v under key, last write wins.
func (r *Response) Set(key string, v any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

func (r *Response) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// GetString returns the value under key when it is a non-empty string.
func (r *Response) GetString(key string) (string, bool) {
	v, ok := r.values[key].(string)
	return v, ok && v != ""
}

// Keys returns keys in insertion order.
func (r *Response) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r *Response) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the accumulator as an object in insertion order.
func (r *Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
