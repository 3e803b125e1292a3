package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"service-engagement/pkg/apperr"

	"go.uber.org/zap"
)

func TestWriteErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("op", map[string]string{"Currency": "required"}), http.StatusBadRequest},
		{apperr.Forbidden("op", "not a party"), http.StatusForbidden},
		{apperr.NotFound("op", "missing"), http.StatusNotFound},
		{apperr.InvalidTransition("op", "completed -> check_in"), http.StatusConflict},
		{apperr.Conflict("op", "version moved"), http.StatusConflict},
		{apperr.Invariant("op", "rectification open"), http.StatusUnprocessableEntity},
		{apperr.External("op", errors.New("broker down")), http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, zap.NewNop(), tc.err, "test")
		if rec.Code != tc.want {
			t.Errorf("%v: status %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestWriteErrorConflictIsRetryable(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, zap.NewNop(), apperr.Conflict("apply", "version moved"), "apply")

	var body struct {
		Errors struct {
			Kind      string `json:"kind"`
			Retryable bool   `json:"retryable"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Errors.Kind != string(apperr.KindConflict) || !body.Errors.Retryable {
		t.Fatalf("errors = %+v", body.Errors)
	}
}

func TestDecodeBody(t *testing.T) {
	var dst struct{ Reason string }

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	if decodeBody(rec, req, &dst) || rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body accepted: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	if !decodeBody(rec, req, &dst) {
		t.Fatal("empty body rejected")
	}
}

func TestActorRequired(t *testing.T) {
	rec := httptest.NewRecorder()
	if _, ok := actorFrom(rec, httptest.NewRequest(http.MethodGet, "/", nil)); ok || rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous request: ok=%v status=%d", ok, rec.Code)
	}
}
