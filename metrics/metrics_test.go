package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/xraph/charter/policy"
)

func TestPluginCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPlugin("charter", reg)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	v1 := &policy.Policy{Type: policy.TypeReturn, Version: 1}
	v2 := &policy.Policy{Type: policy.TypeReturn, Version: 2}
	_ = p.OnPolicyCreated(ctx, v1)
	_ = p.OnPolicyCreated(ctx, v2)
	_ = p.OnPolicyActivated(ctx, v2)
	_ = p.OnValidationFailed(ctx, policy.TypeShipping, errors.New("bad"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if got := metricValue(families, "charter_policy_events_total", map[string]string{"type": "return", "event": "created"}); got != 2 {
		t.Fatalf("created events = %v, want 2", got)
	}
	if got := metricValue(families, "charter_active_policy_version", map[string]string{"type": "return"}); got != 2 {
		t.Fatalf("active version = %v, want 2", got)
	}
	if got := metricValue(families, "charter_config_rejections_total", map[string]string{"type": "shipping"}); got != 1 {
		t.Fatalf("rejections = %v, want 1", got)
	}

	_ = p.OnPolicyDeactivated(ctx, v2)
	families, _ = reg.Gather()
	if got := metricValue(families, "charter_active_policy_version", map[string]string{"type": "return"}); got != 0 {
		t.Fatalf("active version after deactivate = %v, want 0", got)
	}
}

func TestPluginDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPlugin("charter", reg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPlugin("charter", reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestHandler(t *testing.T) {
	p, err := NewPlugin("charter", nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = p.OnPolicyCreated(context.Background(), &policy.Policy{Type: policy.TypeTerms, Version: 1})

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `charter_policy_events_total{event="created",type="terms"} 1`) {
		t.Fatalf("exposition missing created counter:\n%s", body)
	}
}

func metricValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if !labelsMatch(m.GetLabel(), labels) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return -1
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, lp := range pairs {
		if want[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}
