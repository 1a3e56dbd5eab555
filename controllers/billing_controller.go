package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"gorm.io/gorm"

	"realnext/config"
	"realnext/middleware"
	"realnext/models"
	"realnext/store"
	"realnext/utils"
)

type CreateCheckoutRequest struct {
	PlanID     uint   `json:"plan_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

type BillingController struct {
	DB            *gorm.DB
	Subscriptions store.SubscriptionStore
	Logger        *log.Logger
}

func NewBillingController(db *gorm.DB, subscriptions store.SubscriptionStore, logger *log.Logger) *BillingController {
	return &BillingController{DB: db, Subscriptions: subscriptions, Logger: logger}
}

func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

func (bc *BillingController) ListPlans(c *fiber.Ctx) error {
	var plans []models.Plan
	err := bc.DB.
		Preload("PlanFeatures").
		Preload("PlanFeatures.Feature").
		Where("is_active = ?", true).
		Order("price ASC").
		Find(&plans).Error
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load plans", nil)
	}
	return c.JSON(utils.SuccessResponse(plans))
}

func (bc *BillingController) GetSubscription(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	sub, err := bc.Subscriptions.FindCurrent(c.Context(), rc.Client.ID)
	if err != nil {
		utils.LogError("subscription_load_failed", err, map[string]interface{}{"client_id": rc.Client.ID})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load subscription", nil)
	}
	if sub == nil {
		return c.JSON(utils.SuccessResponse(nil))
	}
	return c.JSON(utils.SuccessResponse(sub))
}

// CreateCheckout opens a Stripe checkout session for upgrading the caller's
// client to the requested plan.
func (bc *BillingController) CreateCheckout(c *fiber.Ctx) error {
	rc := middleware.AuthContext(c)

	var req CreateCheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var plan models.Plan
	if err := bc.DB.First(&plan, req.PlanID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Plan not found",
		})
	}
	if plan.StripePriceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Plan is not purchasable",
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		CustomerEmail:     stripe.String(rc.User.Email),
		ClientReferenceID: stripe.String(utils.FormatUint(rc.Client.ID)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("client_id", utils.FormatUint(rc.Client.ID))
	params.AddMetadata("plan_id", utils.FormatUint(plan.ID))

	s, err := session.New(params)
	if err != nil {
		utils.LogError("stripe_checkout_failed", err, map[string]interface{}{
			"client_id": rc.Client.ID,
			"plan_id":   plan.ID,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to start checkout", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"checkout_url": s.URL,
		"session_id":   s.ID,
	}))
}

// HandleStripeWebhook syncs subscription lifecycle from Stripe events. The
// entitlement resolver reads the status on the next request; nothing is
// cached in between.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c, config.AppConfig.StripeWebhookSecret)
	if err != nil {
		return err
	}

	switch event.Type {
	case "checkout.session.completed":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Malformed event payload", nil)
		}
		if err := bc.activateSubscription(&s); err != nil {
			utils.LogError("stripe_activation_failed", err, map[string]interface{}{"event_id": event.ID})
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process event", nil)
		}
	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Malformed event payload", nil)
		}
		if inv.Subscription != nil {
			bc.updateSubscriptionStatus(inv.Subscription.ID, models.SubscriptionStatusPastDue)
		}
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Malformed event payload", nil)
		}
		bc.updateSubscriptionStatus(sub.ID, models.SubscriptionStatusCancelled)
	default:
		bc.Logger.Printf("unhandled stripe event type: %s", event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}

func (bc *BillingController) activateSubscription(s *stripe.CheckoutSession) error {
	clientID := utils.ParseUint(s.Metadata["client_id"])
	planID := utils.ParseUint(s.Metadata["plan_id"])
	if clientID == 0 || planID == 0 {
		bc.Logger.Printf("checkout session %s missing client/plan metadata", s.ID)
		return nil
	}

	stripeSubID := ""
	if s.Subscription != nil {
		stripeSubID = s.Subscription.ID
	}

	now := time.Now()
	periodEnd := now.AddDate(0, 1, 0)
	sub := models.Subscription{
		ClientID:             clientID,
		PlanID:               planID,
		Status:               models.SubscriptionStatusActive,
		CurrentPeriodStart:   &now,
		CurrentPeriodEnd:     &periodEnd,
		StripeSubscriptionID: stripeSubID,
	}

	return bc.DB.Transaction(func(tx *gorm.DB) error {
		// Prior trial/active rows stop being current once superseded.
		if err := tx.Model(&models.Subscription{}).
			Where("client_id = ? AND status IN ?", clientID,
				[]string{models.SubscriptionStatusTrial, models.SubscriptionStatusActive}).
			Update("status", models.SubscriptionStatusCancelled).Error; err != nil {
			return err
		}
		return tx.Create(&sub).Error
	})
}

func (bc *BillingController) updateSubscriptionStatus(stripeSubID, status string) {
	if stripeSubID == "" {
		return
	}
	err := bc.DB.Model(&models.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubID).
		Update("status", status).Error
	if err != nil {
		utils.LogError("subscription_status_update_failed", err, map[string]interface{}{
			"stripe_subscription_id": stripeSubID,
			"status":                 status,
		})
	}
}
