package ui_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/policy"
	"github.com/xraph/charter/store/memory"
	"github.com/xraph/charter/ui"
)

func newServer(t *testing.T) (*httptest.Server, *charter.Engine) {
	t.Helper()
	eng, err := charter.NewEngine(charter.WithStore(memory.New()))
	if err != nil {
		t.Fatal(err)
	}
	pages, err := ui.New(eng)
	if err != nil {
		t.Fatal(err)
	}
	router := forge.NewRouter()
	if err := pages.RegisterRoutes(router); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv, eng
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	return resp.StatusCode, string(body)
}

func publish(t *testing.T, eng *charter.Engine, in *charter.CreateInput) *policy.Policy {
	t.Helper()
	ctx := context.Background()
	p, err := eng.CreatePolicy(ctx, in)
	if err != nil {
		t.Fatal(err)
	}
	p, err = eng.ActivatePolicy(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestIndexListsOnlyActivePolicies(t *testing.T) {
	srv, eng := newServer(t)
	ctx := context.Background()

	status, body := get(t, srv.URL+"/pages/policies")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "No policies have been published yet.") {
		t.Fatalf("expected empty state, got:\n%s", body)
	}

	publish(t, eng, &charter.CreateInput{Type: policy.TypeTerms, Title: "Terms of Service"})
	if _, err := eng.CreatePolicy(ctx, &charter.CreateInput{Type: policy.TypePrivacy, Title: "Draft Privacy"}); err != nil {
		t.Fatal(err)
	}

	_, body = get(t, srv.URL+"/pages/policies")
	if !strings.Contains(body, "Terms of Service") {
		t.Fatal("active policy missing from index")
	}
	if !strings.Contains(body, `href="/pages/policies/terms"`) {
		t.Fatal("expected link to the terms page")
	}
	if strings.Contains(body, "Draft Privacy") {
		t.Fatal("draft policy must not be listed")
	}
}

func TestPolicyPage(t *testing.T) {
	srv, eng := newServer(t)
	publish(t, eng, &charter.CreateInput{
		Type:          policy.TypeReturn,
		Title:         "Returns & Exchanges",
		BodyPlainText: "First paragraph.\n\nSecond paragraph.",
		Config: map[string]any{
			"returnWindowDays": map[string]any{
				"framesOnly":          30,
				"prescriptionGlasses": 14,
				"contactLenses":       7,
			},
			"restockingFeePercent":       15,
			"customerPaysReturnShipping": true,
			"nonReturnableCategories":    []any{"sale"},
		},
	})

	status, body := get(t, srv.URL+"/pages/policies/RETURN")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for _, want := range []string{
		"Returns &amp; Exchanges",
		"<p>First paragraph.</p>",
		"<p>Second paragraph.</p>",
		"Frames can be returned within 30 days.",
		"A 15% restocking fee applies.",
		"Not returnable: sale.",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("page missing %q:\n%s", want, body)
		}
	}
}

func TestPolicyPageNotFound(t *testing.T) {
	srv, _ := newServer(t)

	status, body := get(t, srv.URL+"/pages/policies/warranty")
	if status != http.StatusNotFound {
		t.Fatalf("unpublished type: status = %d", status)
	}
	if !strings.Contains(body, "has not been published yet") {
		t.Fatalf("unexpected body:\n%s", body)
	}

	status, _ = get(t, srv.URL+"/pages/policies/loyalty")
	if status != http.StatusNotFound {
		t.Fatalf("unknown type: status = %d", status)
	}
}

func TestFacts(t *testing.T) {
	tests := []struct {
		name string
		p    *policy.Policy
		want string
	}{
		{
			name: "warranty",
			p: &policy.Policy{Type: policy.TypeWarranty, Config: map[string]any{
				"framesMonths": 12, "lensesMonths": 1,
				"coversManufacturingDefects": true, "excludesScratchesFromWear": true,
			}},
			want: "Lenses are covered for 1 month.",
		},
		{
			name: "cancellation",
			p: &policy.Policy{Type: policy.TypeCancellation, Config: map[string]any{
				"allowCancelReadyBeforeShip":               true,
				"allowCancelPrescriptionBeforeProduction":  false,
				"allowCancelPreorderBeforeSupplierConfirm": true,
			}},
			want: "Prescription orders cannot be cancelled.",
		},
		{
			name: "shipping",
			p: &policy.Policy{Type: policy.TypeShipping, Config: map[string]any{
				"defaultCarrier": "GHN", "standardDaysMin": 2, "standardDaysMax": 4,
				"expressDaysMin": 1, "expressDaysMax": 2, "freeShippingMinAmount": 500000,
			}},
			want: "Shipping is free on orders of 500000 or more.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts := ui.Facts(tt.p)
			found := false
			for _, f := range facts {
				if f == tt.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("facts %v missing %q", facts, tt.want)
			}
		})
	}

	if got := ui.Facts(&policy.Policy{Type: policy.TypeTerms}); len(got) != 0 {
		t.Fatalf("terms facts = %v, want none", got)
	}
}
