package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/charter"
	"github.com/xraph/charter/api"
	"github.com/xraph/charter/auth"
	"github.com/xraph/charter/cache"
	"github.com/xraph/charter/store/memory"
)

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Metadata   json.RawMessage `json:"metadata"`
}

type policyBody struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Version   int    `json:"version"`
	IsActive  bool   `json:"isActive"`
	Title     string `json:"title"`
	CreatedBy string `json:"createdBy"`
}

type fixture struct {
	srv   *httptest.Server
	authn *auth.Authenticator
	admin string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, err := charter.NewEngine(
		charter.WithStore(memory.New()),
		charter.WithCache(cache.NewMemory()),
	)
	if err != nil {
		t.Fatal(err)
	}
	authn := auth.NewAuthenticator([]byte("test-secret"))
	srv := httptest.NewServer(api.New(eng, authn, nil).Handler())
	t.Cleanup(srv.Close)

	admin, err := authn.Sign("admin-1", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{srv: srv, authn: authn, admin: admin}
}

func (f *fixture) token(t *testing.T, role auth.Role) string {
	t.Helper()
	tok, err := f.authn.Sign("user-"+role.String(), role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			t.Fatal(err)
		}
	}
	return f.doRaw(t, method, path, token, raw)
}

// doRaw sends body as-is and decodes exactly one envelope from the response.
func (f *fixture) doRaw(t *testing.T, method, path, token string, body []byte) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("%s %s: decode envelope from %q: %v", method, path, raw, err)
	}
	if env.StatusCode != resp.StatusCode {
		t.Fatalf("%s %s: envelope statusCode = %d, HTTP status = %d", method, path, env.StatusCode, resp.StatusCode)
	}
	return resp.StatusCode, env
}

func decodePolicy(t *testing.T, env envelope) policyBody {
	t.Helper()
	var p policyBody
	if err := json.Unmarshal(env.Metadata, &p); err != nil {
		t.Fatalf("decode policy: %v", err)
	}
	return p
}

func (f *fixture) create(t *testing.T, typ, title string) policyBody {
	t.Helper()
	status, env := f.do(t, http.MethodPost, "/policies", f.admin, map[string]any{
		"type":  typ,
		"title": title,
	})
	if status != http.StatusCreated {
		t.Fatalf("create %s: status = %d (%s)", title, status, env.Message)
	}
	return decodePolicy(t, env)
}

func TestAnonymousRead(t *testing.T) {
	f := newFixture(t)

	status, env := f.do(t, http.MethodGet, "/policies/shipping", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("no active shipping policy: status = %d, want 404", status)
	}
	if env.Message == "" {
		t.Fatal("404 envelope has no message")
	}

	p := f.create(t, "shipping", "Shipping v1")
	if status, _ := f.do(t, http.MethodPatch, "/policies/"+p.ID+"/activate", f.admin, nil); status != http.StatusOK {
		t.Fatalf("activate: status = %d", status)
	}

	status, env = f.do(t, http.MethodGet, "/policies/shipping", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	got := decodePolicy(t, env)
	if got.ID != p.ID || !got.IsActive {
		t.Fatalf("current = %+v, want active %s", got, p.ID)
	}
}

func TestAnonymousWriteRejected(t *testing.T) {
	f := newFixture(t)

	status, _ := f.do(t, http.MethodPost, "/policies", "", map[string]any{"type": "return", "title": "x"})
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}

	status, _ = f.do(t, http.MethodPost, "/policies", "not-a-token", map[string]any{"type": "return", "title": "x"})
	if status != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", status)
	}
}

func TestRoleCapabilities(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "warranty", "Warranty v1")

	customer := f.token(t, auth.RoleCustomer)
	if status, _ := f.do(t, http.MethodPost, "/policies", customer, map[string]any{"type": "return", "title": "x"}); status != http.StatusForbidden {
		t.Fatalf("customer create: status = %d, want 403", status)
	}

	manager := f.token(t, auth.RoleManager)
	if status, _ := f.do(t, http.MethodPatch, "/policies/"+p.ID+"/activate", manager, nil); status != http.StatusOK {
		t.Fatalf("manager activate: status = %d, want 200", status)
	}
	if status, _ := f.do(t, http.MethodDelete, "/policies/"+p.ID, manager, nil); status != http.StatusForbidden {
		t.Fatalf("manager delete: status = %d, want 403", status)
	}
	if status, _ := f.do(t, http.MethodGet, "/policy-audit", manager, nil); status != http.StatusOK {
		t.Fatalf("manager audit: status = %d, want 200", status)
	}
	if status, _ := f.do(t, http.MethodGet, "/policy-audit", customer, nil); status != http.StatusForbidden {
		t.Fatalf("customer audit: status = %d, want 403", status)
	}
}

func TestCreateRejectsInvalidConfig(t *testing.T) {
	f := newFixture(t)

	status, env := f.do(t, http.MethodPost, "/policies", f.admin, map[string]any{
		"type":  "return",
		"title": "Returns",
		"config": map[string]any{
			"returnWindowDays": map[string]any{
				"framesOnly":          30,
				"prescriptionGlasses": 14,
				"contactLenses":       7,
			},
			"restockingFeePercent":       150,
			"customerPaysReturnShipping": false,
			"nonReturnableCategories":    []string{},
		},
	})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}

	var fields []struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(env.Metadata, &fields); err != nil {
		t.Fatalf("decode field errors: %v", err)
	}
	found := false
	for _, fe := range fields {
		if fe.Field == "restockingFeePercent" {
			found = true
		}
	}
	if !found {
		t.Fatalf("field errors %+v do not name restockingFeePercent", fields)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	status, _ := f.do(t, http.MethodPost, "/policies", f.admin, map[string]any{"type": "loyalty", "title": "x"})
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
}

func TestActivationFlow(t *testing.T) {
	f := newFixture(t)

	v1 := f.create(t, "return", "Returns v1")
	if v1.Version != 1 || v1.IsActive {
		t.Fatalf("v1 = %+v, want inactive version 1", v1)
	}
	if status, _ := f.do(t, http.MethodPatch, "/policies/"+v1.ID+"/activate", f.admin, nil); status != http.StatusOK {
		t.Fatalf("activate v1: status = %d", status)
	}

	v2 := f.create(t, "return", "Returns v2")
	if v2.Version != 2 {
		t.Fatalf("v2.Version = %d, want 2", v2.Version)
	}

	_, env := f.do(t, http.MethodGet, "/policies/return", "", nil)
	if cur := decodePolicy(t, env); cur.ID != v1.ID {
		t.Fatalf("current before switch = %s, want v1 %s", cur.ID, v1.ID)
	}

	if status, _ := f.do(t, http.MethodPatch, "/policies/"+v2.ID+"/activate", f.admin, nil); status != http.StatusOK {
		t.Fatalf("activate v2: status = %d", status)
	}
	_, env = f.do(t, http.MethodGet, "/policies/return", "", nil)
	if cur := decodePolicy(t, env); cur.ID != v2.ID {
		t.Fatalf("current after switch = %s, want v2 %s", cur.ID, v2.ID)
	}

	_, env = f.do(t, http.MethodGet, "/policies/"+v1.ID, f.admin, nil)
	if old := decodePolicy(t, env); old.IsActive {
		t.Fatal("v1 still active after v2 activation")
	}

	_, env = f.do(t, http.MethodGet, "/policies/return/history", "", nil)
	var history []policyBody
	if err := json.Unmarshal(env.Metadata, &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Version != 2 || history[1].Version != 1 {
		t.Fatalf("history = %+v, want versions [2 1]", history)
	}
}

func TestUpdatePolicy(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "privacy", "Privacy")

	status, env := f.do(t, http.MethodPatch, "/policies/"+p.ID, f.admin, map[string]any{"title": "Privacy notice"})
	if status != http.StatusOK {
		t.Fatalf("update: status = %d (%s)", status, env.Message)
	}
	if got := decodePolicy(t, env); got.Title != "Privacy notice" || got.Version != p.Version {
		t.Fatalf("updated = %+v", got)
	}

	status, _ = f.do(t, http.MethodPatch, "/policies/"+p.ID, f.admin, map[string]any{"type": "terms"})
	if status != http.StatusBadRequest {
		t.Fatalf("type change: status = %d, want 400", status)
	}

	f.do(t, http.MethodPatch, "/policies/"+p.ID+"/activate", f.admin, nil)
	status, _ = f.do(t, http.MethodPatch, "/policies/"+p.ID, f.admin, map[string]any{"title": "Live edit"})
	if status != http.StatusConflict {
		t.Fatalf("edit active: status = %d, want 409", status)
	}
}

func TestDeleteAndNotFound(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, "terms", "Terms")

	status, env := f.do(t, http.MethodDelete, "/policies/"+p.ID, f.admin, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: status = %d", status)
	}
	if got := decodePolicy(t, env); got.ID != p.ID {
		t.Fatalf("deleted = %s, want %s", got.ID, p.ID)
	}

	if status, _ := f.do(t, http.MethodDelete, "/policies/"+p.ID, f.admin, nil); status != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", status)
	}
	if status, _ := f.do(t, http.MethodPatch, "/policies/not-an-id/activate", f.admin, nil); status != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d, want 400", status)
	}
}

func TestListAndCurrent(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "return", "Returns")
	f.create(t, "shipping", "Shipping")
	f.do(t, http.MethodPatch, "/policies/"+r.ID+"/activate", f.admin, nil)

	status, env := f.do(t, http.MethodGet, "/policies?active=true", f.admin, nil)
	if status != http.StatusOK {
		t.Fatalf("list: status = %d", status)
	}
	var list []policyBody
	if err := json.Unmarshal(env.Metadata, &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != r.ID {
		t.Fatalf("active list = %+v, want only %s", list, r.ID)
	}

	_, env = f.do(t, http.MethodGet, "/policies/current", "", nil)
	var current map[string]policyBody
	if err := json.Unmarshal(env.Metadata, &current); err != nil {
		t.Fatal(err)
	}
	if len(current) != 1 || current["return"].ID != r.ID {
		t.Fatalf("current = %+v", current)
	}
}

func TestListPoliciesFiltersAreOptional(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, "return", "Returns")
	f.create(t, "refund", "Refunds")
	f.do(t, http.MethodPatch, "/policies/"+r.ID+"/activate", f.admin, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/policies", 2},
		{"/policies?active=true", 1},
		{"/policies?active=false", 1},
		{"/policies?type=refund", 1},
		{"/policies?limit=1&offset=1", 1},
	}
	for _, tt := range tests {
		status, env := f.do(t, http.MethodGet, tt.path, f.admin, nil)
		if status != http.StatusOK {
			t.Fatalf("GET %s: status = %d (%s)", tt.path, status, env.Message)
		}
		var list []policyBody
		if err := json.Unmarshal(env.Metadata, &list); err != nil {
			t.Fatal(err)
		}
		if len(list) != tt.want {
			t.Fatalf("GET %s: %d policies, want %d", tt.path, len(list), tt.want)
		}
	}

	if status, _ := f.do(t, http.MethodGet, "/policy-audit", f.admin, nil); status != http.StatusOK {
		t.Fatalf("bare audit listing: status = %d, want 200", status)
	}
	if status, _ := f.do(t, http.MethodGet, "/policy-audit?type=return&action=activated", f.admin, nil); status != http.StatusOK {
		t.Fatalf("filtered audit listing: status = %d, want 200", status)
	}
}

func TestBadQueryUsesEnvelope(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/policies?active=maybe", "/policies?limit=ten", "/policy-audit?policyId=nope"} {
		status, env := f.do(t, http.MethodGet, path, f.admin, nil)
		if status != http.StatusBadRequest || env.Message == "" {
			t.Fatalf("GET %s: status = %d, message = %q", path, status, env.Message)
		}
	}
}

func TestAuthCheckedBeforeBinding(t *testing.T) {
	f := newFixture(t)

	if status, _ := f.doRaw(t, http.MethodPost, "/policies", "", []byte(`{}`)); status != http.StatusUnauthorized {
		t.Fatalf("anonymous empty body: status = %d, want 401", status)
	}
	if status, _ := f.doRaw(t, http.MethodPost, "/policies", "", []byte(`{"type":`)); status != http.StatusUnauthorized {
		t.Fatalf("anonymous malformed body: status = %d, want 401", status)
	}
	customer := f.token(t, auth.RoleCustomer)
	if status, _ := f.doRaw(t, http.MethodPatch, "/policies/not-an-id", customer, []byte(`{`)); status != http.StatusForbidden {
		t.Fatalf("customer malformed update: status = %d, want 403", status)
	}

	status, env := f.doRaw(t, http.MethodPost, "/policies", f.admin, []byte(`{"type":`))
	if status != http.StatusBadRequest || env.Message == "" {
		t.Fatalf("admin malformed body: status = %d, message = %q", status, env.Message)
	}
}

func TestWritesRecordCaller(t *testing.T) {
	f := newFixture(t)
	manager := f.token(t, auth.RoleManager)

	status, env := f.do(t, http.MethodPost, "/policies", manager, map[string]any{"type": "privacy", "title": "Privacy"})
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d (%s)", status, env.Message)
	}
	if p := decodePolicy(t, env); p.CreatedBy != "user-manager" {
		t.Fatalf("createdBy = %q, want user-manager", p.CreatedBy)
	}
}
