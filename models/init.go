package models

import "gorm.io/gorm"

// Migrate runs schema migration for every model in dependency order.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Client{},
		&Role{},
		&Permission{},
		&ClientUser{},
		&Plan{},
		&Feature{},
		&PlanFeature{},
		&Subscription{},
	)
}

// Initialize default features in your database migration
func CreateDefaultFeatures(db *gorm.DB) error {
	defaultFeatures := []Feature{
		{Code: "leads", Name: "Leads", Description: "Lead capture and pipeline management"},
		{Code: "lms", Name: "Lead Management Suite", Description: "Umbrella module for lead tooling"},
		{Code: "campaigns", Name: "Campaigns", Description: "Bulk messaging campaigns"},
		{Code: "workflows", Name: "Workflows", Description: "Automated drip workflows"},
		{Code: "templates", Name: "Templates", Description: "Reusable message templates"},
		{Code: "quick_replies", Name: "Quick Replies", Description: "Canned responses for the inbox"},
		{Code: "meta_ads", Name: "Meta Ads", Description: "Meta ad account integration"},
		{Code: "wa_marketing", Name: "WhatsApp Marketing", Description: "Umbrella module for WhatsApp marketing"},
		{Code: "inventory", Name: "Inventory", Description: "Stock and product tracking"},
		{Code: "catalog", Name: "Catalog", Description: "Product catalog"},
		{Code: "reports", Name: "Reports", Description: "Analytics and reporting"},
	}
	for _, feature := range defaultFeatures {
		if err := db.FirstOrCreate(&feature, "code = ?", feature.Code).Error; err != nil {
			return err
		}
	}
	return nil
}

// Initialize default plans in your database migration
func CreateDefaultPlans(db *gorm.DB) error {
	defaultPlans := []Plan{
		{
			Name:        "free",
			Description: "Free plan with basic lead management",
			Price:       0,
		},
		{
			Name:         "starter",
			Description:  "Starter plan with campaigns and templates",
			Price:        2900, // $29
			DisplayPrice: "$29",
		},
		{
			Name:         "growth",
			Description:  "Growth plan with the full WhatsApp marketing suite",
			Price:        7900, // $79
			DisplayPrice: "$79",
			IsPopular:    true,
		},
		{
			Name:         "enterprise",
			Description:  "Custom plan for high-volume teams",
			Price:        19900, // $199
			DisplayPrice: "$199",
		},
	}
	for _, plan := range defaultPlans {
		if err := db.FirstOrCreate(&plan, "name = ?", plan.Name).Error; err != nil {
			return err
		}
	}
	return seedPlanFeatures(db)
}

// planFeatureSeed maps plan names to feature codes with their limits.
var planFeatureSeed = map[string]map[string]LimitMap{
	"free": {
		"leads": {"max_leads_per_month": 100},
	},
	"starter": {
		"leads":     {"max_leads_per_month": 2000},
		"campaigns": {"max_campaigns_per_month": 10},
		"templates": nil,
		"reports":   nil,
	},
	"growth": {
		"lms":          {"max_leads_per_month": 20000},
		"wa_marketing": {"max_messages_per_month": 50000},
		"reports":      nil,
	},
	"enterprise": {
		"lms":          nil,
		"wa_marketing": nil,
		"inventory":    nil,
		"reports":      nil,
	},
}

func seedPlanFeatures(db *gorm.DB) error {
	for planName, features := range planFeatureSeed {
		var plan Plan
		if err := db.First(&plan, "name = ?", planName).Error; err != nil {
			return err
		}
		for code, limits := range features {
			var feature Feature
			if err := db.First(&feature, "code = ?", code).Error; err != nil {
				return err
			}
			pf := PlanFeature{
				PlanID:    plan.ID,
				FeatureID: feature.ID,
				IsEnabled: true,
				Limits:    limits,
			}
			if err := db.FirstOrCreate(&pf, "plan_id = ? AND feature_id = ?", plan.ID, feature.ID).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Initialize the permission catalog referenced by roles
func CreateDefaultPermissions(db *gorm.DB) error {
	defaultPermissions := []Permission{
		{Code: "leads:read", Name: "View leads", Category: "leads"},
		{Code: "leads:create", Name: "Create leads", Category: "leads"},
		{Code: "leads:update", Name: "Edit leads", Category: "leads"},
		{Code: "leads:admin", Name: "Manage leads", Category: "leads"},
		{Code: "campaigns:read", Name: "View campaigns", Category: "campaigns"},
		{Code: "campaigns:create", Name: "Create campaigns", Category: "campaigns"},
		{Code: "campaigns:update", Name: "Edit campaigns", Category: "campaigns"},
		{Code: "campaigns:admin", Name: "Manage campaigns", Category: "campaigns"},
		{Code: "templates:read", Name: "View templates", Category: "templates"},
		{Code: "templates:create", Name: "Create templates", Category: "templates"},
		{Code: "reports:read", Name: "View reports", Category: "reports"},
		{Code: "team:read", Name: "View team members", Category: "team"},
		{Code: "team:manage", Name: "Manage team members", Category: "team"},
		{Code: "roles:read", Name: "View roles", Category: "roles"},
		{Code: "roles:manage", Name: "Manage roles", Category: "roles"},
		{Code: "billing:manage", Name: "Manage billing", Category: "billing"},
	}
	for _, permission := range defaultPermissions {
		if err := db.FirstOrCreate(&permission, "code = ?", permission.Code).Error; err != nil {
			return err
		}
	}
	return nil
}

// Initialize system roles referenced by the legacy role fallback
func CreateSystemRoles(db *gorm.DB) error {
	systemRoles := []Role{
		{Name: "Admin", IsSystem: true, Permissions: StringList{"*"}},
		{Name: "Manager", IsSystem: true, Permissions: StringList{
			"leads:read", "leads:create", "leads:update",
			"campaigns:read", "campaigns:create", "campaigns:update",
			"templates:read", "templates:create",
			"reports:read", "team:read",
		}},
		{Name: "User", IsSystem: true, Permissions: StringList{
			"leads:read", "leads:create",
			"campaigns:read", "templates:read",
		}},
	}
	for _, role := range systemRoles {
		if err := db.FirstOrCreate(&role, "name = ? AND client_id IS NULL AND is_system = ?", role.Name, true).Error; err != nil {
			return err
		}
	}
	return nil
}
