package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/log"
	"github.com/sitesage/sitesage/internal/session"
	"github.com/sitesage/sitesage/internal/tenant"
)

func tenantMux(tenants TenantDirectory) *http.ServeMux {
	mux := http.NewServeMux()
	NewTenantHandler(tenants, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestTenantCreate(t *testing.T) {
	mux := tenantMux(newMockTenants())

	rec := serveJSON(t, mux, http.MethodPost, "/api/tenants", map[string]any{
		"name":   "Acme",
		"domain": "https://acme.test",
		"settings": map[string]any{
			"greeting": "Hi there!",
			"language": "English",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp tenantResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.APIKey == "" {
		t.Error("APIKey not surfaced on creation")
	}
	if resp.Settings.Greeting != "Hi there!" {
		t.Errorf("Settings = %+v", resp.Settings)
	}
}

func TestTenantCreate_Validation(t *testing.T) {
	mux := tenantMux(newMockTenants())

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"domain": "https://acme.test"}},
		{"missing domain", map[string]any{"name": "Acme"}},
		{"bare hostname", map[string]any{"name": "Acme", "domain": "acme.test"}},
		{"ftp scheme", map[string]any{"name": "Acme", "domain": "ftp://acme.test"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveJSON(t, mux, http.MethodPost, "/api/tenants", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestTenantCreate_DomainTaken(t *testing.T) {
	tenants := newMockTenants()
	tenants.createErr = tenant.ErrDomainTaken
	mux := tenantMux(tenants)

	rec := serveJSON(t, mux, http.MethodPost, "/api/tenants", map[string]any{
		"name": "Acme", "domain": "https://acme.test",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestTenantGet_HidesAPIKey(t *testing.T) {
	tn := apiTenant()
	tn.APIKey = "sk-secret"
	mux := tenantMux(newMockTenants(tn))

	rec := serveJSON(t, mux, http.MethodGet, "/api/tenants/"+tn.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp tenantResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.APIKey != "" {
		t.Error("API key leaked on read")
	}
}

func TestTenantDeactivate(t *testing.T) {
	tn := apiTenant()
	tenants := newMockTenants(tn)
	mux := tenantMux(tenants)

	rec := serveJSON(t, mux, http.MethodDelete, "/api/tenants/"+tn.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if tn.Active {
		t.Error("tenant still active")
	}

	rec = serveJSON(t, mux, http.MethodDelete, "/api/tenants/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSessionEnd(t *testing.T) {
	tn := apiTenant()
	sessions := newMockSessions()
	sess, _, _ := sessions.GetOrCreate(t.Context(), tn.ID, "", session.ClientInfo{})

	mux := http.NewServeMux()
	NewSessionHandler(newMockTenants(tn), sessions, log.NewNop()).RegisterRoutes(mux)

	rec := serveJSON(t, mux, http.MethodPost, "/api/sessions/end", map[string]any{
		"tenantId": tn.ID.String(), "sessionId": sess.Token,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	rec = serveJSON(t, mux, http.MethodPost, "/api/sessions/end", map[string]any{
		"tenantId": tn.ID.String(), "sessionId": sess.Token,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("second end status = %d, want 409", rec.Code)
	}

	rec = serveJSON(t, mux, http.MethodPost, "/api/sessions/end", map[string]any{
		"tenantId": tn.ID.String(), "sessionId": "unknown-token",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", rec.Code)
	}
}
