package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"courierd/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies every *.sql file in dir in lexical order. Statements are
// written to be idempotent, so re-running is safe (dev helper).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migration %s: %w", f, err)
		}
	}
	return nil
}

// CreatePackages inserts packages, skipping ids already stored.
func (p *Postgres) CreatePackages(ctx context.Context, pkgs []model.PackageIn) (int, int, error) {
	created, skipped := 0, 0
	for _, pkg := range pkgs {
		res, err := p.db.ExecContext(ctx,
			`INSERT INTO packages (id, weight, distance, offer_code) VALUES ($1,$2,$3,$4) ON CONFLICT (id) DO NOTHING`,
			pkg.ID, pkg.Weight, pkg.Distance, nullIfEmpty(pkg.OfferCode))
		if err != nil {
			return created, skipped, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		} else {
			skipped++
		}
	}
	return created, skipped, nil
}

func (p *Postgres) ListPackages(ctx context.Context, cursor string, limit int) ([]model.PackageOut, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, weight, distance, COALESCE(offer_code,''), created_at FROM packages
		 WHERE ($1 = '' OR id > $1) ORDER BY id LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var items []model.PackageOut
	for rows.Next() {
		var it model.PackageOut
		var ts time.Time
		if err := rows.Scan(&it.ID, &it.Weight, &it.Distance, &it.OfferCode, &ts); err != nil {
			return nil, "", err
		}
		it.CreatedAt = ts.UTC().Format(time.RFC3339)
		items = append(items, it)
	}
	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = items[limit-1].ID
	}
	return items, next, rows.Err()
}

func (p *Postgres) DeletePackages(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM packages`)
	return err
}

func (p *Postgres) CreateVehicles(ctx context.Context, vehicles []model.VehicleIn) (int, int, error) {
	created, skipped := 0, 0
	for _, v := range vehicles {
		res, err := p.db.ExecContext(ctx,
			`INSERT INTO vehicles (id, name, max_speed, max_carriable_weight, available_time) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`,
			v.ID, nullIfEmpty(v.Name), v.MaxSpeed, v.MaxCarriableWeight, v.AvailableTime)
		if err != nil {
			return created, skipped, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created++
		} else {
			skipped++
		}
	}
	return created, skipped, nil
}

func (p *Postgres) ListVehicles(ctx context.Context, cursor string, limit int) ([]model.VehicleOut, string, error) {
	if limit <= 0 {
		limit = 100
	}
	after := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &after)
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, COALESCE(name,''), max_speed, max_carriable_weight, available_time, created_at FROM vehicles
		 WHERE id > $1 ORDER BY id LIMIT $2`, after, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var items []model.VehicleOut
	for rows.Next() {
		var it model.VehicleOut
		var ts time.Time
		if err := rows.Scan(&it.ID, &it.Name, &it.MaxSpeed, &it.MaxCarriableWeight, &it.AvailableTime, &ts); err != nil {
			return nil, "", err
		}
		it.CreatedAt = ts.UTC().Format(time.RFC3339)
		items = append(items, it)
	}
	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = fmt.Sprintf("%d", items[limit-1].ID)
	}
	return items, next, rows.Err()
}

// SavePlan stores the whole run as a jsonb payload keyed by plan id.
func (p *Postgres) SavePlan(ctx context.Context, plan model.Plan) (string, error) {
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt == "" {
		plan.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO plans (id, base_delivery_cost, payload) VALUES ($1,$2,$3)`,
		plan.ID, plan.BaseDeliveryCost, body)
	if err != nil {
		return "", err
	}
	return plan.ID, nil
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM plans WHERE id=$1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Plan{}, ErrNotFound
	}
	if err != nil {
		return model.Plan{}, err
	}
	var plan model.Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return model.Plan{}, err
	}
	return plan, nil
}

func (p *Postgres) ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanListItem, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, payload FROM plans WHERE ($1 = '' OR id::text > $1) ORDER BY id LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var items []model.PlanListItem
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, "", err
		}
		var plan model.Plan
		if err := json.Unmarshal(body, &plan); err != nil {
			return nil, "", err
		}
		items = append(items, model.PlanListItem{
			ID:            id,
			CreatedAt:     plan.CreatedAt,
			TotalPackages: plan.Summary.TotalPackages,
			Unassigned:    plan.Summary.UnassignedPackages,
			TotalCost:     plan.Summary.TotalCost,
			VehiclesUsed:  plan.Summary.VehiclesUsed,
		})
	}
	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = items[limit-1].ID
	}
	return items, next, rows.Err()
}

func (p *Postgres) SavePlanMetrics(ctx context.Context, planID string, metrics map[string]any) error {
	body, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO plan_metrics (plan_id, metrics) VALUES ($1,$2)`, planID, body)
	return err
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, planID string) ([]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT metrics FROM plan_metrics WHERE plan_id=$1 ORDER BY id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	events, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		s.ID, s.URL, events, nullIfEmpty(s.Secret))
	if err != nil {
		return model.Subscription{}, err
	}
	return s, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, events, COALESCE(secret,'') FROM subscriptions WHERE events @> to_jsonb(ARRAY[$1::text])`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, url, events, COALESCE(secret,'') FROM subscriptions WHERE ($1 = '' OR id::text > $1) ORDER BY id LIMIT $2`, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	items, err := scanSubscriptions(rows)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(items) > limit {
		items = items[:limit]
		next = items[limit-1].ID
	}
	return items, next, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var out []model.Subscription
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	return err
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status) VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, COALESCE(subscription_id,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		 FROM webhook_deliveries
		 WHERE status IN ('pending','retry') AND next_attempt_at <= now()
		 ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx,
			`UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	next := time.Now().Add(time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, next, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='failed', last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id::text, event_type, status, attempts, url, COALESCE(last_error,'')
		 FROM webhook_deliveries
		 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR id::text > $2)
		 ORDER BY id LIMIT $3`, status, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id, et, st, url, lastErr string
		var attempts int
		if err := rows.Scan(&id, &et, &st, &attempts, &url, &lastErr); err != nil {
			return nil, "", err
		}
		item := map[string]any{"id": id, "eventType": et, "status": st, "attempts": attempts, "url": url}
		if lastErr != "" {
			item["lastError"] = lastErr
		}
		out = append(out, item)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1]["id"].(string)
	}
	return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE id=$1`, id)
	return err
}

// Helpers
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
