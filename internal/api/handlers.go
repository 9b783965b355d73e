package api

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "sort"
    "strings"
    "time"

    "courierd/internal/engine"
    "courierd/internal/metrics"
    "courierd/internal/model"
)

// PackagesHandler handles POST/GET/DELETE /v1/packages
func (s *Server) PackagesHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var req struct {
            Packages []model.PackageIn `json:"packages"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        for i, p := range req.Packages {
            if err := engine.ValidatePackage(toEnginePackage(p)); err != nil {
                writeProblem(w, http.StatusBadRequest, "Invalid package", fmt.Sprintf("packages[%d]: %v", i, err), r.URL.Path)
                return
            }
        }
        created, skipped, err := s.Store.CreatePackages(r.Context(), req.Packages)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create packages failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, map[string]any{"created": created, "skipped": skipped})
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListPackages(r.Context(), cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List packages failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    case http.MethodDelete:
        if err := s.Store.DeletePackages(r.Context()); err != nil {
            writeProblem(w, http.StatusInternalServerError, "Delete packages failed", err.Error(), r.URL.Path)
            return
        }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// VehiclesHandler handles POST/GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var req struct {
            Vehicles []model.VehicleIn `json:"vehicles"`
        }
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        for i, v := range req.Vehicles {
            if err := engine.ValidateVehicle(toEngineVehicle(v)); err != nil {
                writeProblem(w, http.StatusBadRequest, "Invalid vehicle", fmt.Sprintf("vehicles[%d]: %v", i, err), r.URL.Path)
                return
            }
        }
        created, skipped, err := s.Store.CreateVehicles(r.Context(), req.Vehicles)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create vehicles failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, map[string]any{"created": created, "skipped": skipped})
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListVehicles(r.Context(), cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// OffersHandler returns the active offer catalog.
func (s *Server) OffersHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/offers" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    offers := make([]engine.Offer, 0, len(s.Catalog))
    for _, o := range s.Catalog {
        offers = append(offers, o)
    }
    sort.Slice(offers, func(i, j int) bool { return offers[i].Code < offers[j].Code })
    writeJSON(w, http.StatusOK, map[string]any{"items": offers})
}

// QuoteHandler handles POST /v1/quote: per-package costs, no scheduling.
func (s *Server) QuoteHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.QuoteRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateQuoteRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid quote request", err.Error(), r.URL.Path)
        return
    }
    results := make([]engine.CostResult, len(req.Packages))
    for i, p := range req.Packages {
        cb := engine.CalculateCost(toEnginePackage(p), req.BaseDeliveryCost, s.Catalog)
        results[i] = engine.CostResult{ID: p.ID, Discount: cb.Discount, TotalCost: cb.TotalCost, OriginalCost: cb.OriginalCost}
    }
    writeJSON(w, http.StatusOK, model.QuoteResponse{Results: results})
}

// PlanHandler handles POST /v1/plan: quote, schedule, persist, notify.
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.PlanRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validatePlanRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
        return
    }
    packages, vehicles, err := s.resolveFleet(r.Context(), &req)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Load backlog failed", err.Error(), r.URL.Path)
        return
    }
    if len(packages) == 0 {
        writeProblem(w, http.StatusBadRequest, "No packages", "request and backlog are both empty", r.URL.Path)
        return
    }

    start := time.Now()
    result, err := engine.Run(packages, vehicles, req.BaseDeliveryCost, s.Catalog)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Plan failed", err.Error(), r.URL.Path)
        return
    }
    elapsed := time.Since(start)
    report := engine.BuildReport(result, packages, vehicles)

    plan := model.Plan{
        BaseDeliveryCost: req.BaseDeliveryCost,
        Results:          result.Results,
        Steps:            result.Steps,
        Shipments:        result.Shipments,
        Vehicles:         result.Vehicles,
        Unassigned:       result.Unassigned,
        Warnings:         result.Warnings,
        Summary:          report.Summary,
        Narrative:        report.Narrative,
    }
    planID, err := s.Store.SavePlan(r.Context(), plan)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
        return
    }

    // Fan out round-by-round events and remember the latest step for late
    // stream subscribers.
    for _, st := range result.Steps {
        s.Progress.Upsert(planID, st)
        s.Broker.Publish(planID, SSEEvent{Type: "plan.step", Data: map[string]any{
            "planId": planID, "step": st.Step, "kind": st.Kind.String(), "description": st.Description,
        }})
    }
    s.Broker.Publish(planID, SSEEvent{Type: "plan.completed", Data: map[string]any{
        "planId": planID, "shipments": len(result.Shipments), "unassigned": len(result.Unassigned),
    }})
    s.Pub.Emit(r.Context(), "plan.completed", map[string]any{"planId": planID, "summary": report.Summary})
    for _, p := range result.Unassigned {
        s.Pub.Emit(r.Context(), "package.stranded", map[string]any{"planId": planID, "packageId": p.ID, "weight": p.Weight})
    }

    _ = s.Store.SavePlanMetrics(r.Context(), planID, map[string]any{
        "durationMs": elapsed.Milliseconds(),
        "rounds":     len(result.Steps),
        "shipments":  len(result.Shipments),
        "packages":   len(packages),
        "unassigned": len(result.Unassigned),
        "vehicles":   len(vehicles),
    })
    metrics.PlansTotal.Inc()
    metrics.PlanDuration.Observe(elapsed.Seconds())
    metrics.PackagesPlanned.WithLabelValues("assigned").Add(float64(len(packages) - len(result.Unassigned)))
    metrics.PackagesPlanned.WithLabelValues("stranded").Add(float64(len(result.Unassigned)))

    writeJSON(w, http.StatusOK, model.PlanResponse{
        PlanID:             planID,
        Results:            result.Results,
        OptimizationSteps:  result.Steps,
        Shipments:          result.Shipments,
        Vehicles:           result.Vehicles,
        UnassignedPackages: result.Unassigned,
        Warnings:           result.Warnings,
        Summary:            report.Summary,
        Narrative:          report.Narrative,
    })
}

// resolveFleet fills missing packages/vehicles from the stored backlog and
// fleet, converting wire types to engine types.
func (s *Server) resolveFleet(ctx context.Context, req *model.PlanRequest) ([]engine.Package, []engine.Vehicle, error) {
    var packages []engine.Package
    if len(req.Packages) > 0 {
        for _, p := range req.Packages {
            packages = append(packages, toEnginePackage(p))
        }
    } else {
        cursor := ""
        for {
            items, next, err := s.Store.ListPackages(ctx, cursor, 500)
            if err != nil {
                return nil, nil, err
            }
            for _, it := range items {
                packages = append(packages, engine.Package{ID: it.ID, Weight: it.Weight, Distance: it.Distance, OfferCode: it.OfferCode})
            }
            if next == "" {
                break
            }
            cursor = next
        }
    }
    var vehicles []engine.Vehicle
    if len(req.Vehicles) > 0 {
        for _, v := range req.Vehicles {
            vehicles = append(vehicles, toEngineVehicle(v))
        }
    } else {
        cursor := ""
        for {
            items, next, err := s.Store.ListVehicles(ctx, cursor, 500)
            if err != nil {
                return nil, nil, err
            }
            for _, it := range items {
                vehicles = append(vehicles, engine.Vehicle{ID: it.ID, Name: it.Name, MaxSpeed: it.MaxSpeed, MaxCarriableWeight: it.MaxCarriableWeight, AvailableTime: it.AvailableTime})
            }
            if next == "" {
                break
            }
            cursor = next
        }
    }
    return packages, vehicles, nil
}

// PlansIndexHandler handles GET /v1/plans
func (s *Server) PlansIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/plans" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListPlans(r.Context(), cursor, limit)
    if err != nil { writeProblem(w, 500, "List plans failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles GET /v1/plans/{id} and /v1/plans/{id}/steps/stream
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
    if rest == r.URL.Path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) > 1 && parts[1] == "steps" && len(parts) > 2 && parts[2] == "stream" {
        s.planStepStream(w, r, id)
        return
    }
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    plan, err := s.Store.GetPlan(r.Context(), id)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Plan not found", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, plan)
}

// planStepStream serves SSE for plan step events.
func (s *Server) planStepStream(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    // Late subscribers catch up from the latest recorded step.
    if st, ok := s.Progress.Latest(id); ok {
        b, _ := json.Marshal(map[string]any{"planId": id, "step": st.Step, "kind": st.Kind.String(), "description": st.Description})
        fmt.Fprintf(w, "event: plan.step\n")
        fmt.Fprintf(w, "data: %s\n\n", string(b))
    }
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.URL == "" || len(req.Events) == 0 {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
            return
        }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), id); err != nil { writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Admin: per-plan engine metrics
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    planID := r.URL.Query().Get("planId")
    if planID == "" { writeProblem(w, 400, "Missing planId", "", r.URL.Path); return }
    items, err := s.Store.ListPlanMetrics(r.Context(), planID)
    if err != nil { writeProblem(w, 500, "Plan metrics failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
