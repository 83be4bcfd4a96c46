package toolresult_test

import (
	"errors"
	"testing"

	"github.com/stride-ai/stride/internal/domain/toolresult"
)

func TestClassify_Nil(t *testing.T) {
	r := toolresult.Classify(nil)
	if r.Kind != toolresult.KindSuccess {
		t.Fatalf("expected success, got %s", r.Kind)
	}
	if r.IsError() {
		t.Fatal("nil payload must not be an error")
	}
}

func TestClassify_Error(t *testing.T) {
	r := toolresult.Classify(errors.New("connection refused"))
	if r.Kind != toolresult.KindToolError {
		t.Fatalf("expected tool_error, got %s", r.Kind)
	}
	if r.Message != "connection refused" {
		t.Fatalf("wrong message: %q", r.Message)
	}
}

func TestClassify_StringWithMarker(t *testing.T) {
	r := toolresult.Classify("Error executing tool fetch_document: timeout")
	if r.Kind != toolresult.KindToolError {
		t.Fatalf("expected tool_error, got %s", r.Kind)
	}
}

func TestClassify_PlainString(t *testing.T) {
	r := toolresult.Classify("all good")
	if r.Kind != toolresult.KindSuccess {
		t.Fatalf("expected success, got %s", r.Kind)
	}
	if r.Payload != "all good" {
		t.Fatalf("payload not preserved: %v", r.Payload)
	}
}

func TestClassify_ArrayWithErrorEntries(t *testing.T) {
	raw := []any{"ok", "Error executing tool summarize: bad input", 42}
	r := toolresult.Classify(raw)
	if r.Kind != toolresult.KindAmbiguousArray {
		t.Fatalf("expected ambiguous_array, got %s", r.Kind)
	}
	if len(r.Entries) != 3 {
		t.Fatalf("entries not preserved: %d", len(r.Entries))
	}
	if len(r.Errors) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(r.Errors))
	}
	if !r.IsError() {
		t.Fatal("ambiguous array must report as error")
	}
}

func TestClassify_StringSliceWithErrorEntries(t *testing.T) {
	raw := []string{"Error executing tool a", "Error executing tool b"}
	r := toolresult.Classify(raw)
	if r.Kind != toolresult.KindAmbiguousArray {
		t.Fatalf("expected ambiguous_array, got %s", r.Kind)
	}
	if got := r.ErrorText(); got != "Error executing tool a; Error executing tool b" {
		t.Fatalf("wrong error text: %q", got)
	}
}

func TestClassify_CleanArray(t *testing.T) {
	r := toolresult.Classify([]any{"a", "b"})
	if r.Kind != toolresult.KindSuccess {
		t.Fatalf("expected success, got %s", r.Kind)
	}
}

func TestClassify_StructPayload(t *testing.T) {
	payload := map[string]any{"rows": 3}
	r := toolresult.Classify(payload)
	if r.Kind != toolresult.KindSuccess {
		t.Fatalf("expected success, got %s", r.Kind)
	}
}

func TestErrorText_Success(t *testing.T) {
	if got := toolresult.Classify("fine").ErrorText(); got != "" {
		t.Fatalf("expected empty error text, got %q", got)
	}
}
