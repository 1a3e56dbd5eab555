package entitlement

import (
	"context"

	"realnext/models"
	"realnext/store"
	"realnext/utils"
)

// moduleExpansion maps umbrella feature codes to the dependent codes they
// switch on. The same table drives every stage that can enable a feature:
// the plan stage, the tenant override stage, and the assigned-module
// restriction. Expansion only adds codes when an umbrella is being enabled;
// an absent or disabled umbrella never removes its dependents.
var moduleExpansion = map[string][]string{
	"inventory":    {"catalog"},
	"lms":          {"leads"},
	"wa_marketing": {"campaigns", "workflows", "templates", "quick_replies", "meta_ads"},
}

// Entitlements is the resolved feature map and per-feature usage limits for
// a single (user, client) request.
type Entitlements struct {
	Features map[string]bool
	Limits   map[string]models.LimitMap
}

func emptyEntitlements() Entitlements {
	return Entitlements{
		Features: map[string]bool{},
		Limits:   map[string]models.LimitMap{},
	}
}

// Resolver computes entitlements from the subscription store and the request
// context. It holds no per-request state and is safe for concurrent use.
type Resolver struct {
	subscriptions store.SubscriptionStore
}

func NewResolver(subscriptions store.SubscriptionStore) *Resolver {
	return &Resolver{subscriptions: subscriptions}
}

// Resolve produces the feature map and limits for a caller acting inside a
// client. The pipeline runs four ordered stages: plan base, macro expansion,
// tenant override, per-member restriction. A failed or cancelled subscription
// read resolves to an empty map: the request proceeds with everything denied
// rather than failing or, worse, granting by default.
func (r *Resolver) Resolve(ctx context.Context, client *models.Client, user *models.User, membership *models.ClientUser) Entitlements {
	result := emptyEntitlements()
	if client == nil {
		return result
	}

	sub, err := r.subscriptions.FindCurrent(ctx, client.ID)
	if err != nil {
		utils.LogError("entitlement_plan_load_failed", err, map[string]interface{}{
			"client_id": client.ID,
		})
		return result
	}

	applyPlan(result, sub)
	applyOverrides(result.Features, client.Settings.Features)

	if user != nil && user.IsSuperAdmin {
		return result
	}
	if membership != nil && membership.IsAdmin() {
		return result
	}
	restrictToAssignments(result.Features, membership)
	return result
}

// applyPlan seeds the feature map from the current plan. Only rows where both
// the plan linkage and the catalog feature are enabled count. Limits are
// sourced here and nowhere else; later stages touch only the boolean map.
func applyPlan(result Entitlements, sub *models.Subscription) {
	if sub == nil {
		return
	}
	for _, pf := range sub.Plan.PlanFeatures {
		if !pf.IsEnabled || !pf.Feature.IsEnabled {
			continue
		}
		enableWithExpansion(result.Features, pf.Feature.Code)
		result.Limits[pf.Feature.Code] = pf.Limits
	}
}

// applyOverrides replaces the resolved value for every key present in the
// tenant's settings document. All explicit keys are applied first; umbrella
// keys set true by the override then expand into their dependent codes.
func applyOverrides(features map[string]bool, overrides map[string]bool) {
	for code, enabled := range overrides {
		features[code] = enabled
	}
	for code, enabled := range overrides {
		if enabled {
			for _, implied := range moduleExpansion[code] {
				features[implied] = true
			}
		}
	}
}

// restrictToAssignments narrows the map to the member's assigned features and
// modules. A member with no assignments ends up with nothing enabled; absence
// of assignment means absence of access, not full access.
func restrictToAssignments(features map[string]bool, membership *models.ClientUser) {
	allowed := map[string]bool{}
	if membership != nil {
		for _, code := range membership.AssignedFeatures {
			allowed[code] = true
		}
		for _, code := range membership.AssignedModules {
			enableWithExpansion(allowed, code)
		}
	}
	for code, enabled := range features {
		if enabled && !allowed[code] {
			features[code] = false
		}
	}
}

// enableWithExpansion turns a code on together with any codes it implies.
func enableWithExpansion(features map[string]bool, code string) {
	features[code] = true
	for _, implied := range moduleExpansion[code] {
		features[implied] = true
	}
}
