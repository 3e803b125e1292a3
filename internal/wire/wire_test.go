package wire

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"service-engagement/internal/data/entity"
	"service-engagement/internal/data/memstore"
	"service-engagement/pkg/middleware"
	"service-engagement/pkg/mq"
	"service-engagement/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const secret = "wire-test-secret"

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

type api struct {
	t      *testing.T
	router http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	cfg := &utils.Config{
		JWT: utils.JWTConfig{Secret: secret},
		Engagement: utils.EngagementConfig{
			ObservationWindow:        72 * time.Hour,
			ProviderResponseDeadline: 48 * time.Hour,
			FixObservationWindow:     24 * time.Hour,
			RefundWindowDefault:      72 * time.Hour,
			HoldOn:                   utils.HoldOnConfirm,
		},
		Worker: utils.WorkerConfig{TimerDrainSchedule: "@every 1h", OutboxSchedule: "@every 1h", OutboxBatch: 10},
	}
	app := Wiring(memstore.New(nil), mq.NewLogPublisher(zap.NewNop()), cfg, zap.NewNop())
	return &api{t: t, router: app.Router}
}

func (a *api) do(actor *entity.Actor, method, path string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := middleware.IssueToken(secret, "", *actor, time.Hour)
		if err != nil {
			a.t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			a.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return rec.Code, env
}

type bookingView struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	StatusVersion int64  `json:"status_version"`
	CheckInCode   string `json:"check_in_code"`
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	client := entity.Actor{ID: uuid.New(), Role: entity.RoleClient}
	provider := entity.Actor{ID: uuid.New(), Role: entity.RoleProvider}
	admin := entity.Actor{ID: uuid.New(), Role: entity.RoleAdmin}

	if code, _ := a.do(nil, http.MethodGet, "/api/bookings", nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous list = %d, want 401", code)
	}

	code, env := a.do(&client, http.MethodPost, "/api/bookings", map[string]any{
		"category_tag":  "cleaning",
		"provider_id":   provider.ID.String(),
		"agreed_amount": 30000,
		"currency":      "NGN",
	})
	if code != http.StatusCreated {
		t.Fatalf("create = %d %s", code, env.Message)
	}
	var created bookingView
	if err := json.Unmarshal(env.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.CheckInCode == "" || created.Status != "created" {
		t.Fatalf("created = %+v", created)
	}

	code, _ = a.do(&client, http.MethodPost, "/api/bookings", map[string]any{"category_tag": "cleaning"})
	if code != http.StatusBadRequest {
		t.Fatalf("invalid create = %d, want 400", code)
	}

	base := "/api/bookings/" + created.ID

	// the client cannot confirm on the provider's behalf
	code, _ = a.do(&client, http.MethodPost, base+"/confirm", map[string]any{"expected_version": created.StatusVersion})
	if code != http.StatusForbidden && code != http.StatusConflict {
		t.Fatalf("client confirm = %d", code)
	}

	code, env = a.do(&provider, http.MethodPost, base+"/confirm", map[string]any{"expected_version": created.StatusVersion})
	if code != http.StatusOK {
		t.Fatalf("confirm = %d %s", code, env.Message)
	}
	var confirmed bookingView
	_ = json.Unmarshal(env.Data, &confirmed)

	code, _ = a.do(&provider, http.MethodPost, base+"/confirm", map[string]any{"expected_version": created.StatusVersion})
	if code != http.StatusConflict {
		t.Fatalf("stale confirm = %d, want 409", code)
	}

	code, env = a.do(&client, http.MethodGet, base+"/escrow", nil)
	if code != http.StatusOK {
		t.Fatalf("escrow status = %d %s", code, env.Message)
	}

	code, _ = a.do(&client, http.MethodPost, "/api/admin/bookings/"+created.ID+"/escrow/freeze", map[string]any{"reason": "x"})
	if code != http.StatusForbidden {
		t.Fatalf("client admin route = %d, want 403", code)
	}

	code, env = a.do(&provider, http.MethodPost, base+"/check-in", map[string]any{
		"expected_version": confirmed.StatusVersion,
		"otp":              created.CheckInCode,
		"lat":              6.5244,
		"lng":              3.3792,
	})
	if code != http.StatusOK {
		t.Fatalf("check-in = %d %s", code, env.Message)
	}

	code, env = a.do(&client, http.MethodGet, base+"/timeline", nil)
	if code != http.StatusOK {
		t.Fatalf("timeline = %d %s", code, env.Message)
	}
	var entries []map[string]any
	_ = json.Unmarshal(env.Data, &entries)
	if len(entries) < 3 {
		t.Fatalf("timeline has %d entries", len(entries))
	}

	code, _ = a.do(&admin, http.MethodGet, "/api/admin/rectifications", nil)
	if code != http.StatusOK {
		t.Fatalf("admin list = %d", code)
	}

	code, _ = a.do(&client, http.MethodGet, "/api/bookings/"+uuid.NewString(), nil)
	if code != http.StatusNotFound {
		t.Fatalf("unknown booking = %d, want 404", code)
	}
}
