// Package metrics exports policy lifecycle events as Prometheus metrics.
// The Plugin is registered on the engine like any other lifecycle plugin.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/charter/plugin"
	"github.com/xraph/charter/policy"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Plugin)(nil)
	_ plugin.PolicyCreated     = (*Plugin)(nil)
	_ plugin.PolicyUpdated     = (*Plugin)(nil)
	_ plugin.PolicyActivated   = (*Plugin)(nil)
	_ plugin.PolicyDeactivated = (*Plugin)(nil)
	_ plugin.PolicyDeleted     = (*Plugin)(nil)
	_ plugin.ValidationFailed  = (*Plugin)(nil)
)

// Plugin counts lifecycle events per policy type and tracks the active
// version of each type.
type Plugin struct {
	events        *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	activeVersion *prometheus.GaugeVec
	gatherer      prometheus.Gatherer
}

// NewPlugin creates the collectors under namespace and registers them on
// reg. A nil reg uses a private registry, exposed through Handler.
func NewPlugin(namespace string, reg *prometheus.Registry) (*Plugin, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Plugin{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_events_total",
			Help:      "Policy lifecycle events by type and event",
		}, []string{"type", "event"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_rejections_total",
			Help:      "Policy configs rejected by validation, by type",
		}, []string{"type"}),
		activeVersion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_policy_version",
			Help:      "Version number of the active policy per type (0 when none)",
		}, []string{"type"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{p.events, p.rejections, p.activeVersion} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string { return "prometheus" }

// Handler serves the registry in the Prometheus exposition format.
func (p *Plugin) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

func (p *Plugin) OnPolicyCreated(_ context.Context, pol *policy.Policy) error {
	p.events.WithLabelValues(string(pol.Type), "created").Inc()
	return nil
}

func (p *Plugin) OnPolicyUpdated(_ context.Context, pol *policy.Policy) error {
	p.events.WithLabelValues(string(pol.Type), "updated").Inc()
	return nil
}

func (p *Plugin) OnPolicyActivated(_ context.Context, pol *policy.Policy) error {
	p.events.WithLabelValues(string(pol.Type), "activated").Inc()
	p.activeVersion.WithLabelValues(string(pol.Type)).Set(float64(pol.Version))
	return nil
}

func (p *Plugin) OnPolicyDeactivated(_ context.Context, pol *policy.Policy) error {
	p.events.WithLabelValues(string(pol.Type), "deactivated").Inc()
	p.activeVersion.WithLabelValues(string(pol.Type)).Set(0)
	return nil
}

func (p *Plugin) OnPolicyDeleted(_ context.Context, pol *policy.Policy) error {
	p.events.WithLabelValues(string(pol.Type), "deleted").Inc()
	if pol.IsActive {
		p.activeVersion.WithLabelValues(string(pol.Type)).Set(0)
	}
	return nil
}

func (p *Plugin) OnValidationFailed(_ context.Context, t policy.Type, _ error) error {
	p.rejections.WithLabelValues(string(t)).Inc()
	return nil
}
