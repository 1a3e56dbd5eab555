package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ConstructStripeEvent securely constructs and verifies a Stripe webhook event
func ConstructStripeEvent(c *fiber.Ctx, webhookSecret string) (stripe.Event, error) {
	payload := c.Body()

	// Get and validate the Stripe-Signature header
	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Missing Stripe-Signature header")
	}

	// Verify the webhook signature with tolerance for clock drift
	event, err := webhook.ConstructEventWithTolerance(
		payload,
		signature,
		webhookSecret,
		5*time.Minute,
	)
	if err != nil {
		LogError("stripe_webhook_verification_failed", err, map[string]interface{}{
			"signature_prefix": signature[:min(10, len(signature))],
		})
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Invalid webhook signature")
	}

	LogEvent("stripe_webhook_verified", map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})
	return event, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
