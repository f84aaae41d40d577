package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/charter/audit"
	"github.com/xraph/charter/auth"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := a.group(router, "audit")

	return g.GET("/policy-audit", a.listAudit,
		forge.WithSummary("List audit entries"),
		forge.WithDescription("Returns the policy lifecycle trail, newest first. Requires audit:read."),
		forge.WithOperationID("listPolicyAudit"),
		a.require(auth.AuditRead),
		forge.WithRequestSchema(ListAuditRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit entries", &AuditListEnvelope{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAudit(ctx forge.Context) error {
	var req ListAuditRequest
	if err := bind(ctx, &req); err != nil {
		return a.fail(ctx, err)
	}
	filter, err := auditFilter(&req)
	if err != nil {
		return a.fail(ctx, err)
	}

	entries, total, err := a.eng.ListAudit(ctx.Context(), filter)
	if err != nil {
		return a.fail(ctx, err)
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	return respond(ctx, http.StatusOK, fmt.Sprintf("%d of %d entries", len(entries), total), entries)
}
