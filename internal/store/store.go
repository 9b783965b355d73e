package store

import (
	"context"
	"errors"
	"time"

	"courierd/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Packages
	CreatePackages(ctx context.Context, pkgs []model.PackageIn) (created, skipped int, err error)
	ListPackages(ctx context.Context, cursor string, limit int) (items []model.PackageOut, nextCursor string, err error)
	DeletePackages(ctx context.Context) error

	// Vehicles
	CreateVehicles(ctx context.Context, vehicles []model.VehicleIn) (created, skipped int, err error)
	ListVehicles(ctx context.Context, cursor string, limit int) ([]model.VehicleOut, string, error)

	// Saved plans
	SavePlan(ctx context.Context, plan model.Plan) (string, error)
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanListItem, string, error)

	// Plan metrics (admin views)
	SavePlanMetrics(ctx context.Context, planID string, metrics map[string]any) error
	ListPlanMetrics(ctx context.Context, planID string) ([]map[string]any, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, id string) error
}

var ErrNotFound = errors.New("not found")
