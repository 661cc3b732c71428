package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/influencer-marketplace/backend/internal/models"
	"go.uber.org/zap"
)

type stubResolver map[string]models.Actor

func (s stubResolver) ResolveActor(token string) (models.Actor, error) {
	a, ok := s[token]
	if !ok {
		return models.Actor{}, errors.New("bad token")
	}
	return a, nil
}

func TestAuthMiddleware(t *testing.T) {
	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}
	influencer := models.Actor{ID: uuid.New(), Role: models.RoleInfluencer}

	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Use(AuthMiddleware(stubResolver{"admin": admin, "inf": influencer}, zap.NewNop()))
	app.Get("/whoami", func(c *fiber.Ctx) error { return c.JSON(GetActor(c)) })
	app.Get("/admin", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/whoami", "", fiber.StatusUnauthorized},
		{"not bearer", "/whoami", "Basic abc", fiber.StatusUnauthorized},
		{"unknown token", "/whoami", "Bearer nope", fiber.StatusUnauthorized},
		{"valid token", "/whoami", "Bearer inf", fiber.StatusOK},
		{"role guard rejects", "/admin", "Bearer inf", fiber.StatusForbidden},
		{"role guard admits", "/admin", "Bearer admin", fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if resp.StatusCode == fiber.StatusUnauthorized {
				var body map[string]string
				_ = json.NewDecoder(resp.Body).Decode(&body)
				if body["kind"] != "unauthenticated" || body["request_id"] == "" {
					t.Errorf("error body = %v", body)
				}
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetRequestID(c)) })

	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{"none", "", false},
		{"uuid", uuid.NewString(), true},
		{"trace style", "edge-01:abc_123.4", true},
		{"too long", strings.Repeat("a", 65), false},
		{"header injection", "abc\r\nSet-Cookie: x", false},
		{"spaces", "req 1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.inbound != "" {
				req.Header[HeaderRequestID] = []string{tt.inbound}
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			body, _ := io.ReadAll(resp.Body)
			got := resp.Header.Get(HeaderRequestID)
			if string(body) != got {
				t.Errorf("locals id %q != header id %q", body, got)
			}
			if tt.keep && got != tt.inbound {
				t.Errorf("id = %q, want inbound %q", got, tt.inbound)
			}
			if !tt.keep {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("id = %q, want a generated uuid", got)
				}
			}
		})
	}
}
