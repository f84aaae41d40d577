// Package ui serves the public, server-rendered policy pages customers read.
// Only active policies are shown; drafts and history stay behind the API.
package ui

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/policy"
)

//go:embed templates/*.html
var templateFS embed.FS

// Pages renders the public policy pages.
type Pages struct {
	eng      *charter.Engine
	basePath string
	logger   *slog.Logger
	pages    map[string]*template.Template
}

// Option configures Pages.
type Option func(*Pages)

// WithBasePath mounts the pages under prefix.
func WithBasePath(prefix string) Option { return func(p *Pages) { p.basePath = prefix } }

// WithLogger sets the logger used for render failures.
func WithLogger(l *slog.Logger) Option { return func(p *Pages) { p.logger = l } }

// New parses the embedded templates and returns the page set.
func New(eng *charter.Engine, opts ...Option) (*Pages, error) {
	p := &Pages{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	funcs := template.FuncMap{
		"date":       func(t time.Time) string { return t.Format("2 January 2006") },
		"paragraphs": paragraphs,
		"facts":      Facts,
		"label":      label,
		"href":       p.href,
	}
	base, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("charter/ui: parse layout: %w", err)
	}

	p.pages = make(map[string]*template.Template, 3)
	for _, name := range []string{"index.html", "policy.html", "missing.html"} {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("charter/ui: clone layout: %w", err)
		}
		t, err := clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("charter/ui: parse %s: %w", name, err)
		}
		p.pages[name] = t
	}
	return p, nil
}

// RegisterRoutes registers the page routes on router.
func (p *Pages) RegisterRoutes(router forge.Router) error {
	g := router
	if p.basePath != "" && p.basePath != "/" {
		g = router.Group(p.basePath, forge.WithGroupTags("pages"))
	}

	if err := g.GET("/pages/policies", p.index,
		forge.WithSummary("Policy index page"),
		forge.WithDescription("HTML page listing every published policy."),
		forge.WithOperationID("policyIndexPage"),
	); err != nil {
		return err
	}

	return g.GET("/pages/policies/:ref", p.show,
		forge.WithSummary("Policy page"),
		forge.WithDescription("HTML page for the published policy of one type."),
		forge.WithOperationID("policyPage"),
	)
}

type indexEntry struct {
	Type   policy.Type
	Policy *policy.Policy
}

func (p *Pages) index(ctx forge.Context) error {
	current, err := p.eng.CurrentPolicies(ctx.Context())
	if err != nil {
		p.logger.Error("charter/ui: load current policies", "error", err)
		return p.render(ctx, http.StatusInternalServerError, "missing.html", missingPage{
			Heading: "Policies are unavailable",
			Detail:  "Please try again shortly.",
		})
	}

	entries := make([]indexEntry, 0, len(current))
	for _, t := range policy.Types() {
		if pol, ok := current[t]; ok {
			entries = append(entries, indexEntry{Type: t, Policy: pol})
		}
	}
	return p.render(ctx, http.StatusOK, "index.html", entries)
}

type missingPage struct {
	Heading string
	Detail  string
}

func (p *Pages) show(ctx forge.Context) error {
	ref := ctx.Param("ref")
	t, err := policy.ParseType(ref)
	if err != nil {
		return p.render(ctx, http.StatusNotFound, "missing.html", missingPage{
			Heading: "Policy not found",
			Detail:  fmt.Sprintf("There is no %q policy.", ref),
		})
	}

	pol, err := p.eng.CurrentPolicy(ctx.Context(), t)
	switch {
	case errors.Is(err, charter.ErrNoActivePolicy):
		return p.render(ctx, http.StatusNotFound, "missing.html", missingPage{
			Heading: label(t) + " policy",
			Detail:  "This policy has not been published yet.",
		})
	case err != nil:
		p.logger.Error("charter/ui: load policy", "type", t, "error", err)
		return p.render(ctx, http.StatusInternalServerError, "missing.html", missingPage{
			Heading: "Policies are unavailable",
			Detail:  "Please try again shortly.",
		})
	}
	return p.render(ctx, http.StatusOK, "policy.html", pol)
}

// render executes page into a buffer before any header is written.
func (p *Pages) render(ctx forge.Context, status int, page string, data any) error {
	var buf bytes.Buffer
	if err := p.pages[page].ExecuteTemplate(&buf, "layout.html", data); err != nil {
		p.logger.Error("charter/ui: render", "page", page, "error", err)
		http.Error(ctx.Response(), "internal server error", http.StatusInternalServerError)
		return nil
	}
	w := ctx.Response()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

func (p *Pages) href(t policy.Type) string {
	index := strings.TrimSuffix(p.basePath, "/") + "/pages/policies"
	if t == "" {
		return index
	}
	return index + "/" + string(t)
}

func label(t policy.Type) string {
	s := string(t)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// paragraphs splits plain text on blank lines.
func paragraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(s, "\n\n") {
		if b := strings.TrimSpace(block); b != "" {
			out = append(out, b)
		}
	}
	return out
}
