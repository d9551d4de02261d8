// Package protocol defines the request/response types for the Flow Launcher
// JSON-RPC boundary. The host passes one request as a JSON string argument
// and reads a single response envelope from stdout.
package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// Request is a single host dispatch: a method name with positional
// parameters. Newer hosts attach the plugin's settings store to every
// request; older ones omit it.
type Request struct {
	Method     string         `json:"method"`
	Parameters []any          `json:"parameters"`
	Settings   map[string]any `json:"settings,omitempty"`
}

// ParseRequest decodes the host's request argument.
func ParseRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("request has no method")
	}
	return &req, nil
}

// StringParam returns the positional parameter at index i when it is a
// string. Missing or differently typed parameters report ok=false.
func (r *Request) StringParam(i int) (string, bool) {
	if i < 0 || i >= len(r.Parameters) {
		return "", false
	}
	s, ok := r.Parameters[i].(string)
	return s, ok
}

// Action is a follow-up dispatch attached to a result. The host invokes
// Method with Parameters when the result is selected. Key casing follows
// the host convention: actions are lowercase, results are PascalCase.
type Action struct {
	Method              string `json:"method"`
	Parameters          []any  `json:"parameters"`
	DontHideAfterAction bool   `json:"dontHideAfterAction,omitempty"`
}

// Result is one selectable entry in the host's result list.
type Result struct {
	Title       string  `json:"Title"`
	SubTitle    string  `json:"SubTitle,omitempty"`
	IcoPath     string  `json:"IcoPath,omitempty"`
	JSONRPC     *Action `json:"JsonRPCAction,omitempty"`
	ContextData any     `json:"ContextData,omitempty"`
	Score       int     `json:"Score,omitempty"`
}

// Response is the envelope the host expects on stdout.
type Response struct {
	Result []Result `json:"result"`
}

// NewResponse wraps results in an envelope. A nil slice still encodes as an
// empty array so the host always sees a result key.
func NewResponse(results []Result) *Response {
	if results == nil {
		results = []Result{}
	}
	return &Response{Result: results}
}

// Encode writes the envelope as a single JSON document.
func (r *Response) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
