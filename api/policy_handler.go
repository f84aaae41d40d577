package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/charter"
	"github.com/xraph/charter/auth"
	"github.com/xraph/charter/id"
	"github.com/xraph/charter/middleware"
	"github.com/xraph/charter/policy"
)

func (a *API) registerPolicyRoutes(router forge.Router) error {
	g := a.group(router, "policies")

	if err := g.POST("/policies", a.createPolicy,
		forge.WithSummary("Create policy"),
		forge.WithDescription("Authors a new inactive version of a policy type. Requires policy:write."),
		forge.WithOperationID("createPolicy"),
		a.require(auth.PolicyWrite),
		forge.WithRequestSchema(CreatePolicyRequest{}),
		forge.WithCreatedResponse(&PolicyEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/policies", a.listPolicies,
		forge.WithSummary("List policies"),
		forge.WithDescription("Lists every version, newest first within a type. Requires policy:read."),
		forge.WithOperationID("listPolicies"),
		a.require(auth.PolicyRead),
		forge.WithRequestSchema(ListPoliciesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Policy list", &PolicyListEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/policies/current", a.currentPolicies,
		forge.WithSummary("Current policies"),
		forge.WithDescription("Returns the active version of every type that has one."),
		forge.WithOperationID("currentPolicies"),
		forge.WithResponseSchema(http.StatusOK, "Active policies by type", &CurrentPoliciesEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/policies/:ref", a.getPolicy,
		forge.WithSummary("Get policy"),
		forge.WithDescription("With a type, returns its active version. With a policy ID, returns that version and requires policy:read."),
		forge.WithOperationID("getPolicy"),
		forge.WithRequestSchema(PolicyRefRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Policy", &PolicyEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/policies/:ref/history", a.policyHistory,
		forge.WithSummary("Policy history"),
		forge.WithDescription("Returns every version of a type, newest first."),
		forge.WithOperationID("policyHistory"),
		forge.WithRequestSchema(PolicyRefRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Policy versions", &PolicyListEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PATCH("/policies/:ref", a.updatePolicy,
		forge.WithSummary("Update policy"),
		forge.WithDescription("Edits an inactive version. Requires policy:write."),
		forge.WithOperationID("updatePolicy"),
		a.require(auth.PolicyWrite),
		forge.WithRequestSchema(UpdatePolicyRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated policy", &PolicyEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PATCH("/policies/:ref/activate", a.activatePolicy,
		forge.WithSummary("Activate policy"),
		forge.WithDescription("Makes the version current and deactivates its siblings. Requires policy:activate."),
		forge.WithOperationID("activatePolicy"),
		a.require(auth.PolicyActivate),
		forge.WithRequestSchema(PolicyRefRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Activated policy", &PolicyEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PATCH("/policies/:ref/deactivate", a.deactivatePolicy,
		forge.WithSummary("Deactivate policy"),
		forge.WithDescription("Clears the active flag. Requires policy:activate."),
		forge.WithOperationID("deactivatePolicy"),
		a.require(auth.PolicyActivate),
		forge.WithRequestSchema(PolicyRefRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Deactivated policy", &PolicyEnvelope{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/policies/:ref", a.deletePolicy,
		forge.WithSummary("Delete policy"),
		forge.WithDescription("Hard-deletes a version. Requires policy:delete."),
		forge.WithOperationID("deletePolicy"),
		a.require(auth.PolicyDelete),
		forge.WithRequestSchema(PolicyRefRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Removed policy", &PolicyEnvelope{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createPolicy(ctx forge.Context) error {
	var req CreatePolicyRequest
	if err := bind(ctx, &req); err != nil {
		return a.fail(ctx, err)
	}

	created, err := a.eng.CreatePolicy(ctx.Context(), &charter.CreateInput{
		Type:             policy.Type(req.Type),
		Title:            req.Title,
		Summary:          req.Summary,
		BodyPlainText:    req.BodyPlainText,
		BodyRichTextJSON: req.BodyRichTextJSON,
		Config:           req.Config,
		EffectiveFrom:    req.EffectiveFrom,
	})
	if err != nil {
		return a.fail(ctx, err)
	}
	return respond(ctx, http.StatusCreated, "policy created", created)
}

func (a *API) listPolicies(ctx forge.Context) error {
	var req ListPoliciesRequest
	if err := bind(ctx, &req); err != nil {
		return a.fail(ctx, err)
	}
	active, err := parseActive(req.Active)
	if err != nil {
		return a.fail(ctx, err)
	}

	list, total, err := a.eng.ListPolicies(ctx.Context(), &policy.ListFilter{
		Type:     policy.Type(req.Type),
		IsActive: active,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return a.fail(ctx, err)
	}
	if list == nil {
		list = []*policy.Policy{}
	}
	return respond(ctx, http.StatusOK, fmt.Sprintf("%d of %d policies", len(list), total), list)
}

func (a *API) currentPolicies(ctx forge.Context) error {
	current, err := a.eng.CurrentPolicies(ctx.Context())
	if err != nil {
		return a.fail(ctx, err)
	}
	return respond(ctx, http.StatusOK, "current policies", current)
}

// getPolicy serves both reads on /policies/:ref. A policy ID needs
// policy:read, so it is checked here rather than on the route.
func (a *API) getPolicy(ctx forge.Context) error {
	ref := ctx.Param("ref")

	if id.LooksLike(ref, id.PrefixPolicy) {
		if _, err := middleware.Authorize(ctx, a.authn, auth.PolicyRead); err != nil {
			return a.fail(ctx, err)
		}
		polID, err := parsePolicyRef(ref)
		if err != nil {
			return a.fail(ctx, err)
		}
		p, err := a.eng.GetPolicy(ctx.Context(), polID)
		if err != nil {
			return a.fail(ctx, err)
		}
		return respond(ctx, http.StatusOK, "policy", p)
	}

	p, err := a.eng.CurrentPolicy(ctx.Context(), policy.Type(ref))
	if err != nil {
		return a.fail(ctx, err)
	}
	return respond(ctx, http.StatusOK, "current "+string(p.Type)+" policy", p)
}

func (a *API) policyHistory(ctx forge.Context) error {
	list, err := a.eng.PolicyHistory(ctx.Context(), policy.Type(ctx.Param("ref")))
	if err != nil {
		return a.fail(ctx, err)
	}
	if list == nil {
		list = []*policy.Policy{}
	}
	return respond(ctx, http.StatusOK, fmt.Sprintf("%d versions", len(list)), list)
}

func (a *API) updatePolicy(ctx forge.Context) error {
	polID, err := parsePolicyRef(ctx.Param("ref"))
	if err != nil {
		return a.fail(ctx, err)
	}
	var req UpdatePolicyRequest
	if err := bind(ctx, &req); err != nil {
		return a.fail(ctx, err)
	}

	updated, err := a.eng.UpdatePolicy(ctx.Context(), polID, &charter.UpdateInput{
		Type:    policy.Type(req.Type),
		Content: req.content(),
	})
	if err != nil {
		return a.fail(ctx, err)
	}
	return respond(ctx, http.StatusOK, "policy updated", updated)
}

func (a *API) activatePolicy(ctx forge.Context) error {
	polID, err := parsePolicyRef(ctx.Param("ref"))
	if err != nil {
		return a.fail(ctx, err)
	}
	activated, err := a.eng.ActivatePolicy(ctx.Context(), polID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return respond(ctx, http.StatusOK, "policy activated", activated)
}

func (a *API) deactivatePolicy(ctx forge.Context) error {
	polID, err := parsePolicyRef(ctx.Param("ref"))
	if err != nil {
		return a.fail(ctx, err)
	}
	deactivated, err := a.eng.DeactivatePolicy(ctx.Context(), polID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return respond(ctx, http.StatusOK, "policy deactivated", deactivated)
}

func (a *API) deletePolicy(ctx forge.Context) error {
	polID, err := parsePolicyRef(ctx.Param("ref"))
	if err != nil {
		return a.fail(ctx, err)
	}
	removed, err := a.eng.DeletePolicy(ctx.Context(), polID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return respond(ctx, http.StatusOK, "policy deleted", removed)
}
