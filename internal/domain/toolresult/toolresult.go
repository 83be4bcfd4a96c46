// Package toolresult normalizes raw tool payloads into a closed set of
// variants so downstream components never re-sniff shapes.
package toolresult

import (
	"fmt"
	"strings"
)

// ErrorMarker is the conventional prefix tool backends put on entries of a
// result array when an invocation failed at the tool level while the
// transport call itself succeeded.
const ErrorMarker = "Error executing tool"

// Kind discriminates the variants of a classified tool result.
type Kind string

const (
	KindSuccess        Kind = "success"
	KindToolError      Kind = "tool_error"
	KindAmbiguousArray Kind = "ambiguous_array"
)

// Result is the tagged union produced by exactly one classification pass
// over a raw tool payload.
type Result struct {
	Kind    Kind
	Payload any      // KindSuccess: the raw payload as returned
	Message string   // KindToolError: the error text
	Entries []any    // KindAmbiguousArray: array entries, some error-shaped
	Errors  []string // KindAmbiguousArray: the error-shaped entry texts
}

// Classify inspects a raw payload once and returns its variant.
// An array containing at least one entry carrying the error marker is
// classified AmbiguousArray even though the call returned successfully at
// the transport level.
func Classify(raw any) Result {
	switch v := raw.(type) {
	case nil:
		return Result{Kind: KindSuccess, Payload: nil}
	case error:
		return Result{Kind: KindToolError, Message: v.Error()}
	case string:
		if strings.Contains(v, ErrorMarker) {
			return Result{Kind: KindToolError, Message: v}
		}
		return Result{Kind: KindSuccess, Payload: v}
	case []any:
		var errs []string
		for _, entry := range v {
			if s, ok := entry.(string); ok && strings.Contains(s, ErrorMarker) {
				errs = append(errs, s)
			}
		}
		if len(errs) > 0 {
			return Result{Kind: KindAmbiguousArray, Entries: v, Errors: errs}
		}
		return Result{Kind: KindSuccess, Payload: v}
	case []string:
		var errs []string
		entries := make([]any, len(v))
		for i, s := range v {
			entries[i] = s
			if strings.Contains(s, ErrorMarker) {
				errs = append(errs, s)
			}
		}
		if len(errs) > 0 {
			return Result{Kind: KindAmbiguousArray, Entries: entries, Errors: errs}
		}
		return Result{Kind: KindSuccess, Payload: v}
	default:
		return Result{Kind: KindSuccess, Payload: raw}
	}
}

// IsError reports whether the result represents a failure of any shape.
func (r Result) IsError() bool {
	return r.Kind != KindSuccess
}

// ErrorText returns a single human-readable error string for failed results.
func (r Result) ErrorText() string {
	switch r.Kind {
	case KindToolError:
		return r.Message
	case KindAmbiguousArray:
		return strings.Join(r.Errors, "; ")
	default:
		return ""
	}
}

// String implements fmt.Stringer for log output.
func (r Result) String() string {
	if r.IsError() {
		return fmt.Sprintf("%s: %s", r.Kind, r.ErrorText())
	}
	return string(r.Kind)
}
