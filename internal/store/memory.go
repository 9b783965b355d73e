package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"courierd/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	packages   []model.PackageOut
	pkgByID    map[string]int
	vehicles   []model.VehicleOut
	vehByID    map[int]int
	plans      map[string]model.Plan
	planOrder  []string
	planMx     map[string][]map[string]any
	subs       []model.Subscription
	deliveries map[string]*memDelivery
	delOrder   []string
}

func NewMemory() *Memory {
	return &Memory{
		pkgByID:    map[string]int{},
		vehByID:    map[int]int{},
		plans:      map[string]model.Plan{},
		planMx:     map[string][]map[string]any{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func (m *Memory) CreatePackages(ctx context.Context, pkgs []model.PackageIn) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created, skipped := 0, 0
	for _, p := range pkgs {
		if _, ok := m.pkgByID[p.ID]; ok {
			skipped++
			continue
		}
		m.pkgByID[p.ID] = len(m.packages)
		m.packages = append(m.packages, model.PackageOut{
			ID: p.ID, Weight: p.Weight, Distance: p.Distance, OfferCode: p.OfferCode, CreatedAt: nowRFC3339(),
		})
		created++
	}
	return created, skipped, nil
}

func (m *Memory) ListPackages(ctx context.Context, cursor string, limit int) ([]model.PackageOut, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		if i, ok := m.pkgByID[cursor]; ok {
			start = i + 1
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(m.packages) {
		end = len(m.packages)
	}
	items := append([]model.PackageOut(nil), m.packages[start:end]...)
	next := ""
	if end < len(m.packages) && end > start {
		next = m.packages[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeletePackages(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packages = nil
	m.pkgByID = map[string]int{}
	return nil
}

func (m *Memory) CreateVehicles(ctx context.Context, vehicles []model.VehicleIn) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created, skipped := 0, 0
	for _, v := range vehicles {
		if _, ok := m.vehByID[v.ID]; ok {
			skipped++
			continue
		}
		m.vehByID[v.ID] = len(m.vehicles)
		m.vehicles = append(m.vehicles, model.VehicleOut{
			ID: v.ID, Name: v.Name, MaxSpeed: v.MaxSpeed,
			MaxCarriableWeight: v.MaxCarriableWeight, AvailableTime: v.AvailableTime,
			CreatedAt: nowRFC3339(),
		})
		created++
	}
	return created, skipped, nil
}

func (m *Memory) ListVehicles(ctx context.Context, cursor string, limit int) ([]model.VehicleOut, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i := range m.vehicles {
			if strconv.Itoa(m.vehicles[i].ID) == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(m.vehicles) {
		end = len(m.vehicles)
	}
	items := append([]model.VehicleOut(nil), m.vehicles[start:end]...)
	next := ""
	if end < len(m.vehicles) && end > start {
		next = strconv.Itoa(m.vehicles[end-1].ID)
	}
	return items, next, nil
}

func (m *Memory) SavePlan(ctx context.Context, plan model.Plan) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt == "" {
		plan.CreatedAt = nowRFC3339()
	}
	m.plans[plan.ID] = plan
	m.planOrder = append(m.planOrder, plan.ID)
	return plan.ID, nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[id]
	if !ok {
		return model.Plan{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanListItem, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i, id := range m.planOrder {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.PlanListItem{}
	next := ""
	for i := start; i < len(m.planOrder) && len(out) < limit; i++ {
		p := m.plans[m.planOrder[i]]
		out = append(out, planListItem(p))
		next = p.ID
	}
	if start+len(out) >= len(m.planOrder) {
		next = ""
	}
	return out, next, nil
}

func planListItem(p model.Plan) model.PlanListItem {
	return model.PlanListItem{
		ID:            p.ID,
		CreatedAt:     p.CreatedAt,
		TotalPackages: p.Summary.TotalPackages,
		Unassigned:    p.Summary.UnassignedPackages,
		TotalCost:     p.Summary.TotalCost,
		VehiclesUsed:  p.Summary.VehiclesUsed,
	}
}

func (m *Memory) SavePlanMetrics(ctx context.Context, planID string, metrics map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.planMx[planID] = append(m.planMx[planID], metrics)
	return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, planID string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.planMx[planID]...), nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i := range m.subs {
			if m.subs[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(m.subs) {
		end = len(m.subs)
	}
	items := append([]model.Subscription(nil), m.subs[start:end]...)
	next := ""
	if end < len(m.subs) && end > start {
		next = m.subs[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs = out
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID: id, SubscriptionID: subscriptionID, EventType: eventType,
			URL: url, Secret: secret, Payload: payload, Status: "pending",
		},
		NextAttemptAt: time.Now(),
	}
	m.deliveries[id] = d
	m.delOrder = append(m.delOrder, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.delOrder {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.delOrder {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
			if d.LastError != "" {
				item["lastError"] = d.LastError
			}
			out = append(out, item)
		}
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.deliveries[id]; d != nil {
		d.Status = "pending"
		d.NextAttemptAt = time.Now()
	}
	return nil
}
