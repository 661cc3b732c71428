package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/auth"
	"github.com/influencer-marketplace/backend/internal/config"
	"github.com/influencer-marketplace/backend/internal/events"
	"github.com/influencer-marketplace/backend/internal/http/handlers"
	"github.com/influencer-marketplace/backend/internal/models"
	"github.com/influencer-marketplace/backend/internal/notify"
	"github.com/influencer-marketplace/backend/internal/services"
	"github.com/influencer-marketplace/backend/internal/storage/memory"
	"github.com/influencer-marketplace/backend/internal/telemetry"
	"go.uber.org/zap"
)

type testAPI struct {
	t        *testing.T
	app      *fiber.App
	resolver *auth.Resolver
	disp     *notify.Dispatcher
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()
	bus := events.NewLocalBus()
	metrics := telemetry.NewMetrics("test")
	resolver := auth.NewResolver("secret")

	disp := notify.NewDispatcher(notify.NewDirectory(store), notify.NewStoreNotifier(store), notify.Options{}, metrics, log)
	workflow := services.NewWorkflowService(store, disp, bus, metrics, log)
	catalog := services.NewCatalogService(store, log)
	users := services.NewUserService(store, log)

	app := fiber.New()
	SetupRouter(app, &config.Config{CORSAllowOrigins: []string{"*"}}, log, nil, metrics, resolver,
		handlers.NewWorkflowHandler(workflow, catalog, log),
		handlers.NewCampaignHandler(catalog, log),
		handlers.NewProposalHandler(catalog, log),
		handlers.NewAdvertiserProposalHandler(catalog, log),
		handlers.NewUserHandler(users, catalog, log),
		handlers.NewNotificationHandler(users, log),
		handlers.NewWSHub(resolver, bus, log),
	)
	return &testAPI{t: t, app: app, resolver: resolver, disp: disp}
}

// login issues a token for a new user of role and registers it with /me/ping.
func (a *testAPI) login(role models.Role) string {
	a.t.Helper()
	token, err := a.resolver.Issue(models.Actor{ID: uuid.New(), Role: role}, time.Hour)
	if err != nil {
		a.t.Fatal(err)
	}
	if status, _ := a.do("POST", "/api/v1/me/ping", token, nil); status != fiber.StatusOK {
		a.t.Fatalf("ping status = %d", status)
	}
	return token
}

func (a *testAPI) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.app.Test(req, -1)
	if err != nil {
		a.t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func dataID(t *testing.T, body map[string]any) string {
	t.Helper()
	data, _ := body["data"].(map[string]any)
	id, _ := data["id"].(string)
	if id == "" {
		t.Fatalf("response has no data.id: %v", body)
	}
	return id
}

func TestCampaignFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	adv := api.login(models.RoleAdvertiser)
	inf := api.login(models.RoleInfluencer)

	status, body := api.do("POST", "/api/v1/campaigns", adv, map[string]any{"title": "Launch", "budget": 1000})
	if status != fiber.StatusCreated {
		t.Fatalf("create status = %d body = %v", status, body)
	}
	campaignID := dataID(t, body)

	status, _ = api.do("GET", "/api/v1/campaigns/"+campaignID, inf, nil)
	if status != fiber.StatusForbidden {
		t.Errorf("influencer reads draft: status = %d, want 403", status)
	}

	status, body = api.do("POST", "/api/v1/campaigns/"+campaignID+"/actions/publish", adv, nil)
	if status != fiber.StatusOK {
		t.Fatalf("publish status = %d body = %v", status, body)
	}

	status, body = api.do("POST", "/api/v1/campaigns/"+campaignID+"/actions/apply", inf, map[string]any{"message": "pick me"})
	if status != fiber.StatusCreated {
		t.Fatalf("apply status = %d body = %v", status, body)
	}
	appID := dataID(t, body)

	status, body = api.do("POST", "/api/v1/campaigns/"+campaignID+"/actions/apply", inf, nil)
	if status != fiber.StatusConflict || body["kind"] != "duplicate_application" {
		t.Errorf("second apply = %d %v, want 409 duplicate_application", status, body)
	}

	status, body = api.do("POST", "/api/v1/transitions", adv, map[string]any{
		"entity_type": "application",
		"entity_id":   appID,
		"action":      "accept",
	})
	if status != fiber.StatusOK {
		t.Fatalf("accept status = %d body = %v", status, body)
	}

	status, body = api.do("POST", "/api/v1/applications/"+appID+"/actions/accept", adv, nil)
	if status != fiber.StatusConflict || body["kind"] != "invalid_transition" {
		t.Errorf("accept twice = %d %v, want 409 invalid_transition", status, body)
	}

	status, body = api.do("GET", "/api/v1/applications/"+appID+"/events", inf, nil)
	if status != fiber.StatusOK {
		t.Fatalf("events status = %d", status)
	}
	if history, _ := body["data"].([]any); len(history) != 2 {
		t.Errorf("history = %v, want 2 entries", body["data"])
	}

	api.disp.Wait()
	status, body = api.do("GET", "/api/v1/notifications", inf, nil)
	if status != fiber.StatusOK {
		t.Fatalf("notifications status = %d", status)
	}
	if ns, _ := body["data"].([]any); len(ns) == 0 {
		t.Error("applicant should have an inbox entry")
	}
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	adv := api.login(models.RoleAdvertiser)
	inf := api.login(models.RoleInfluencer)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"no token", "GET", "/api/v1/campaigns", "", nil, fiber.StatusUnauthorized, "unauthenticated"},
		{"influencer creates campaign", "POST", "/api/v1/campaigns", inf, map[string]any{"title": "x"}, fiber.StatusForbidden, "forbidden"},
		{"missing title", "POST", "/api/v1/campaigns", adv, map[string]any{"budget": 1}, fiber.StatusUnprocessableEntity, "validation_failed"},
		{"unknown campaign", "GET", "/api/v1/campaigns/" + uuid.NewString(), adv, nil, fiber.StatusNotFound, "not_found"},
		{"bad id", "GET", "/api/v1/campaigns/nope", adv, nil, fiber.StatusBadRequest, "validation_failed"},
		{"unknown entity type", "POST", "/api/v1/transitions", adv, map[string]any{"entity_type": "deal", "entity_id": uuid.NewString(), "action": "close"}, fiber.StatusUnprocessableEntity, "validation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := api.do(tt.method, tt.path, tt.token, tt.body)
			if status != tt.status || body["kind"] != tt.kind {
				t.Errorf("%s %s = %d %v, want %d %s", tt.method, tt.path, status, body, tt.status, tt.kind)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/health", "/metrics"} {
		resp, err := api.app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Errorf("GET %s = %d", path, resp.StatusCode)
		}
	}
}
