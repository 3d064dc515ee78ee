package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "eventreg/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error keeps public message only", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.Wrap(errors.New("pq: deadlock detected"), dErrors.CodeInternal, "processing failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["ok"] != false {
			t.Fatalf("expected ok=false, got %v", body["ok"])
		}
		if body["message"] != "processing failed" {
			t.Fatalf("expected generic message, got %q", body["message"])
		}
	})

	t.Run("bad request includes message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "state who invited you"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["message"] != "state who invited you" {
			t.Fatalf("expected validation message, got %q", body["message"])
		}
	})

	t.Run("plain error becomes generic 500", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("redis: connection refused"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["message"] != "processing failed" {
			t.Fatalf("expected generic message, got %q", body["message"])
		}
	})
}
