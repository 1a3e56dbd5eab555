package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"realnext/models"
)

// SubscriptionWorker expires subscriptions whose billing period has lapsed
// without renewal. Entitlements read the status live, so an expiry takes
// effect on the next request.
type SubscriptionWorker struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewSubscriptionWorker(db *gorm.DB, logger *log.Logger) *SubscriptionWorker {
	return &SubscriptionWorker{DB: db, Logger: logger}
}

func (sw *SubscriptionWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	sw.Logger.Println("Subscription worker started")

	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Subscription worker shutting down...")
			return
		case <-ticker.C:
			sw.expireLapsed()
		}
	}
}

func (sw *SubscriptionWorker) expireLapsed() {
	result := sw.DB.Model(&models.Subscription{}).
		Where("status IN ? AND current_period_end IS NOT NULL AND current_period_end < ?",
			[]string{models.SubscriptionStatusTrial, models.SubscriptionStatusActive},
			time.Now()).
		Update("status", models.SubscriptionStatusExpired)
	if result.Error != nil {
		sw.Logger.Printf("Error expiring lapsed subscriptions: %v", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		sw.Logger.Printf("Expired %d lapsed subscriptions", result.RowsAffected)
	}
}
