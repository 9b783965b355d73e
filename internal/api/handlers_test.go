package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
    t.Helper()
    b, _ := json.Marshal(body)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
    req.Header.Set("Content-Type", "application/json")
    h(rr, req)
    return rr
}

func classicPlanRequest() map[string]any {
    return map[string]any{
        "baseDeliveryCost": 100,
        "packages": []map[string]any{
            {"id": "PKG1", "weight": 50, "distance": 30, "offerCode": "OFR001"},
            {"id": "PKG2", "weight": 75, "distance": 125, "offerCode": "OFR008"},
            {"id": "PKG3", "weight": 175, "distance": 100, "offerCode": "OFR003"},
            {"id": "PKG4", "weight": 110, "distance": 60, "offerCode": "OFR002"},
            {"id": "PKG5", "weight": 155, "distance": 95},
        },
        "vehicles": []map[string]any{
            {"id": 1, "maxSpeed": 70, "maxCarriableWeight": 200},
            {"id": 2, "maxSpeed": 70, "maxCarriableWeight": 200},
        },
    }
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestPackagesCreateListDelete(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.PackagesHandler, "/v1/packages", map[string]any{
        "packages": []map[string]any{
            {"id": "PKG1", "weight": 50, "distance": 30, "offerCode": "OFR001"},
            {"id": "PKG2", "weight": 75, "distance": 125},
        },
    })
    if rr.Code != http.StatusAccepted { t.Fatalf("packages create: got %d (%s)", rr.Code, rr.Body.String()) }
    var created struct{ Created, Skipped int }
    _ = json.Unmarshal(rr.Body.Bytes(), &created)
    if created.Created != 2 { t.Fatalf("want 2 created, got %+v", created) }

    // duplicate ids are skipped, not rejected
    rr = postJSON(t, s.PackagesHandler, "/v1/packages", map[string]any{
        "packages": []map[string]any{{"id": "PKG1", "weight": 50, "distance": 30}},
    })
    _ = json.Unmarshal(rr.Body.Bytes(), &created)
    if created.Skipped != 1 { t.Fatalf("want 1 skipped, got %+v", created) }

    rr = httptest.NewRecorder()
    s.PackagesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/packages?limit=5", nil))
    if rr.Code != 200 { t.Fatalf("packages list: got %d", rr.Code) }
    var idx struct{ Items []struct{ ID string `json:"id"` } `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &idx)
    if len(idx.Items) != 2 { t.Fatalf("want 2 items, got %d", len(idx.Items)) }

    rr = httptest.NewRecorder()
    s.PackagesHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/packages", nil))
    if rr.Code != http.StatusNoContent { t.Fatalf("packages delete: got %d", rr.Code) }
}

func TestPackagesCreateRejectsInvalid(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.PackagesHandler, "/v1/packages", map[string]any{
        "packages": []map[string]any{{"id": "PKG1", "weight": -5, "distance": 30}},
    })
    if rr.Code != http.StatusBadRequest { t.Fatalf("want 400, got %d", rr.Code) }
    if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
        t.Fatalf("want problem+json, got %s", ct)
    }
}

func TestVehiclesCreateList(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.VehiclesHandler, "/v1/vehicles", map[string]any{
        "vehicles": []map[string]any{
            {"id": 1, "maxSpeed": 70, "maxCarriableWeight": 200},
            {"id": 2, "maxSpeed": 70, "maxCarriableWeight": 200},
        },
    })
    if rr.Code != http.StatusAccepted { t.Fatalf("vehicles create: got %d (%s)", rr.Code, rr.Body.String()) }
    rr = httptest.NewRecorder()
    s.VehiclesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/vehicles", nil))
    if rr.Code != 200 { t.Fatalf("vehicles list: got %d", rr.Code) }
    var idx struct{ Items []struct{ ID int `json:"id"` } `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &idx)
    if len(idx.Items) != 2 { t.Fatalf("want 2 vehicles, got %d", len(idx.Items)) }
}

func TestOffersList(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.OffersHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/offers", nil))
    if rr.Code != 200 { t.Fatalf("offers: got %d", rr.Code) }
    var idx struct{ Items []struct{ Code string `json:"code"` } `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &idx)
    if len(idx.Items) != 3 || idx.Items[0].Code != "OFR001" {
        t.Fatalf("unexpected catalog: %+v", idx.Items)
    }
}

func TestQuote(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.QuoteHandler, "/v1/quote", map[string]any{
        "baseDeliveryCost": 100,
        "packages": []map[string]any{
            {"id": "PKG2", "weight": 110, "distance": 60, "offerCode": "OFR002"},
            {"id": "PKG3", "weight": 175, "distance": 100, "offerCode": "OFR003"},
        },
    })
    if rr.Code != 200 { t.Fatalf("quote: got %d (%s)", rr.Code, rr.Body.String()) }
    var resp struct {
        Results []struct {
            ID        string  `json:"id"`
            Discount  float64 `json:"discount"`
            TotalCost float64 `json:"totalCost"`
        } `json:"results"`
    }
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if len(resp.Results) != 2 { t.Fatalf("want 2 results, got %d", len(resp.Results)) }
    if resp.Results[0].Discount != 105 || resp.Results[0].TotalCost != 1395 {
        t.Fatalf("PKG2 quote wrong: %+v", resp.Results[0])
    }
    // weight 175 is outside OFR003's range, discount must be zero
    if resp.Results[1].Discount != 0 || resp.Results[1].TotalCost != 2350 {
        t.Fatalf("PKG3 quote wrong: %+v", resp.Results[1])
    }
}

func TestQuoteRejectsBadBase(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.QuoteHandler, "/v1/quote", map[string]any{
        "baseDeliveryCost": 0,
        "packages":         []map[string]any{{"id": "PKG1", "weight": 50, "distance": 30}},
    })
    if rr.Code != http.StatusBadRequest { t.Fatalf("want 400, got %d", rr.Code) }
}

func TestPlanEndToEnd(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.PlanHandler, "/v1/plan", classicPlanRequest())
    if rr.Code != 200 { t.Fatalf("plan: got %d (%s)", rr.Code, rr.Body.String()) }
    var resp struct {
        PlanID  string `json:"planId"`
        Results []struct {
            ID                    string  `json:"id"`
            EstimatedDeliveryTime float64 `json:"estimatedDeliveryTime"`
        } `json:"results"`
        OptimizationSteps []json.RawMessage `json:"optimizationSteps"`
        Summary           struct {
            TotalPackages      int `json:"totalPackages"`
            UnassignedPackages int `json:"unassignedPackages"`
        } `json:"summary"`
        Narrative string `json:"narrative"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil { t.Fatalf("decode: %v", err) }
    if resp.PlanID == "" { t.Fatalf("missing planId") }
    if len(resp.Results) != 5 { t.Fatalf("want 5 results, got %d", len(resp.Results)) }
    if len(resp.OptimizationSteps) != 7 { t.Fatalf("want 7 steps, got %d", len(resp.OptimizationSteps)) }
    if resp.Summary.TotalPackages != 5 || resp.Summary.UnassignedPackages != 0 {
        t.Fatalf("summary wrong: %+v", resp.Summary)
    }
    for _, r0 := range resp.Results {
        if r0.EstimatedDeliveryTime <= 0 {
            t.Fatalf("delivery time not back-filled for %s", r0.ID)
        }
    }
    if resp.Narrative == "" { t.Fatalf("missing narrative") }

    // saved plan fetchable
    rr = httptest.NewRecorder()
    s.PlanByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+resp.PlanID, nil))
    if rr.Code != 200 { t.Fatalf("get plan: got %d", rr.Code) }

    // and listed
    rr = httptest.NewRecorder()
    s.PlansIndexHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
    if rr.Code != 200 { t.Fatalf("list plans: got %d", rr.Code) }
    var idx struct{ Items []struct{ ID string `json:"id"` } `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &idx)
    if len(idx.Items) != 1 || idx.Items[0].ID != resp.PlanID {
        t.Fatalf("plan listing wrong: %+v", idx.Items)
    }

    // engine metrics recorded for the plan
    rr = httptest.NewRecorder()
    s.PlanMetricsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/plan-metrics?planId="+resp.PlanID, nil))
    if rr.Code != 200 { t.Fatalf("plan metrics: got %d", rr.Code) }
    var pm struct{ Items []map[string]any `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &pm)
    if len(pm.Items) != 1 { t.Fatalf("want 1 metrics row, got %d", len(pm.Items)) }
}

func TestPlanUsesStoredBacklog(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.PackagesHandler, "/v1/packages", map[string]any{
        "packages": []map[string]any{{"id": "PKG1", "weight": 50, "distance": 30, "offerCode": "OFR001"}},
    })
    if rr.Code != http.StatusAccepted { t.Fatalf("seed packages: %d", rr.Code) }
    rr = postJSON(t, s.VehiclesHandler, "/v1/vehicles", map[string]any{
        "vehicles": []map[string]any{{"id": 1, "maxSpeed": 70, "maxCarriableWeight": 200}},
    })
    if rr.Code != http.StatusAccepted { t.Fatalf("seed vehicles: %d", rr.Code) }

    rr = postJSON(t, s.PlanHandler, "/v1/plan", map[string]any{"baseDeliveryCost": 100})
    if rr.Code != 200 { t.Fatalf("plan from backlog: got %d (%s)", rr.Code, rr.Body.String()) }
    var resp struct {
        Results []struct{ ID string `json:"id"` } `json:"results"`
    }
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)
    if len(resp.Results) != 1 || resp.Results[0].ID != "PKG1" {
        t.Fatalf("backlog plan wrong: %+v", resp.Results)
    }
}

func TestPlanRejectsEmpty(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.PlanHandler, "/v1/plan", map[string]any{"baseDeliveryCost": 100})
    if rr.Code != http.StatusBadRequest { t.Fatalf("want 400 for empty backlog, got %d", rr.Code) }
}

func TestPlanEnqueuesWebhooks(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", map[string]any{
        "url": "https://hooks.example/ep", "events": []string{"plan.completed"}, "secret": "s1",
    })
    if rr.Code != http.StatusCreated { t.Fatalf("subscription: got %d (%s)", rr.Code, rr.Body.String()) }

    rr = postJSON(t, s.PlanHandler, "/v1/plan", classicPlanRequest())
    if rr.Code != 200 { t.Fatalf("plan: got %d", rr.Code) }

    items, _, err := s.Store.ListWebhookDeliveries(context.Background(), "pending", "", 10)
    if err != nil { t.Fatalf("list deliveries: %v", err) }
    if len(items) != 1 { t.Fatalf("want 1 queued delivery, got %d", len(items)) }
    if items[0]["eventType"] != "plan.completed" {
        t.Fatalf("wrong event type: %v", items[0]["eventType"])
    }
}

func TestPlanStepStreamReplaysLatest(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.PlanHandler, "/v1/plan", classicPlanRequest())
    if rr.Code != 200 { t.Fatalf("plan: got %d", rr.Code) }
    var resp struct{ PlanID string `json:"planId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &resp)

    ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
    defer cancel()
    rr = httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+resp.PlanID+"/steps/stream", nil).WithContext(ctx)
    s.PlanByIDHandler(rr, req)
    body := rr.Body.String()
    if !strings.Contains(body, "event: plan.step") {
        t.Fatalf("stream missing step snapshot: %q", body)
    }
    if !strings.Contains(body, "event: heartbeat") {
        t.Fatalf("stream missing heartbeat: %q", body)
    }
}

func TestSubscriptionDelete(t *testing.T) {
    s := newTestServer(t)
    rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", map[string]any{
        "url": "https://hooks.example/ep", "events": []string{"plan.completed"},
    })
    if rr.Code != http.StatusCreated { t.Fatalf("subscription: got %d", rr.Code) }
    var sub struct{ ID string `json:"id"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &sub)

    rr = httptest.NewRecorder()
    s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
    if rr.Code != 204 { t.Fatalf("delete subscription: got %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
    var idx struct{ Items []any `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &idx)
    if len(idx.Items) != 0 { t.Fatalf("subscription not deleted: %+v", idx.Items) }
}
