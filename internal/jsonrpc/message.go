// Package jsonrpc implements the newline-delimited JSON-RPC 2.0 framing
// and lazy message classification used by both interceptor pipelines.
// See spec.md §4.C and §6 ("Transport").
package jsonrpc

import "encoding/json"

// Kind classifies a parsed frame. Classification is lazy: a frame is only
// parsed once, by whichever pipeline consumes it (spec.md §4.C).
type Kind int

const (
	// KindOpaque marks a frame that failed to parse as JSON. The raw line
	// is still forwarded byte-for-byte (spec.md §4.F).
	KindOpaque Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

// Message is a classified JSON-RPC frame. Raw always holds the original
// line exactly as received, without the trailing newline.
type Message struct {
	Raw     string
	Kind    Kind
	JSONRPC string
	ID      interface{}
	Method  string
	Params  map[string]interface{}
	Result  interface{}
	Error   map[string]interface{}
}

// Parse classifies raw as a JSON-RPC frame. A JSON parse failure returns
// KindOpaque with Raw populated and err non-nil; callers forward the line
// unchanged rather than reject it.
func Parse(raw string) (Message, error) {
	m := Message{Raw: raw, Kind: KindOpaque}

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return m, err
	}

	if v, ok := obj["jsonrpc"].(string); ok {
		m.JSONRPC = v
	}
	if id, present := obj["id"]; present {
		m.ID = id
	}
	if method, ok := obj["method"].(string); ok {
		m.Method = method
	}
	if params, ok := obj["params"].(map[string]interface{}); ok {
		m.Params = params
	}
	if result, present := obj["result"]; present {
		m.Result = result
	}
	if errObj, ok := obj["error"].(map[string]interface{}); ok {
		m.Error = errObj
	}

	switch {
	case m.Method != "" && m.ID != nil:
		m.Kind = KindRequest
	case m.Method != "" && m.ID == nil:
		m.Kind = KindNotification
	default:
		m.Kind = KindResponse
	}
	return m, nil
}

// ResultOrWhole returns message.result if present, otherwise the whole
// decoded object — the value serialized for sensitive-data scanning on
// the server→client pipeline (spec.md §4.F step 2).
func (m Message) ResultOrWhole() (string, error) {
	var v interface{} = m.Result
	if m.Result == nil {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(m.Raw), &obj); err != nil {
			return "", err
		}
		v = obj
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HasID reports whether the original message carried a non-nil id,
// i.e. whether a synthetic error response is addressable back to it.
func (m Message) HasID() bool {
	return m.ID != nil
}
