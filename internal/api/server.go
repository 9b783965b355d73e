package api

import (
    "os"
    "strings"

    "courierd/internal/engine"
    "courierd/internal/store"
    "courierd/internal/webhooks"
)

type Server struct {
    Store    store.Store
    Pub      *webhooks.Publisher
    Broker   EventBroker
    Catalog  engine.Catalog
    Progress *ProgressCache
}

// NewServer creates a Server. If DATABASE_URL is unset, uses in-memory store.
func NewServer() (*Server, error) {
    dsn := os.Getenv("DATABASE_URL")
    var s store.Store
    if strings.TrimSpace(dsn) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker
    if os.Getenv("REDIS_URL") != "" {
        if rb, err := NewRedisBroker(); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    return &Server{
        Store:    s,
        Pub:      webhooks.NewPublisher(s),
        Broker:   broker,
        Catalog:  engine.DefaultCatalog(),
        Progress: NewProgressCache(),
    }, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store)
}
