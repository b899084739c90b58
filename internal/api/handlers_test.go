package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crosspay/settlement-service/internal/app"
	"github.com/crosspay/settlement-service/internal/domain"
	"github.com/crosspay/settlement-service/internal/ledger"
	"github.com/crosspay/settlement-service/internal/store"
)

func TestWriteServiceErrorStatusMapping(t *testing.T) {
	h := &SettlementHandlers{}

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown role", domain.ErrInvalidRole, http.StatusBadRequest},
		{"wrapped unknown role", fmt.Errorf("%w: %q", domain.ErrInvalidRole, "admin"), http.StatusBadRequest},
		{"missing receiver", domain.ErrMissingReceiver, http.StatusBadRequest},
		{"invalid country code", domain.ErrInvalidCountryCode, http.StatusBadRequest},
		{"profile not found", store.ErrProfileNotFound, http.StatusNotFound},
		{"profile exists", store.ErrProfileExists, http.StatusConflict},
		{"unauthorized", domain.ErrUnauthorized, http.StatusForbidden},
		{"stale address", domain.ErrAddressMismatch, http.StatusConflict},
		{"insufficient funds", ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"rate limited", app.ErrRateLimited, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, "test", tc.err)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] == "Internal server error" {
				t.Fatalf("client input surfaced as an internal error: %v", tc.err)
			}
		})
	}
}
