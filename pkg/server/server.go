// Package server provides the public entry point for initializing the
// briefdesk orchestration engine.
//
// This package exists in pkg/ (not internal/) so that hosting applications
// can import it and compose the engine with their own middleware or identity
// providers.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"time"

	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/briefdesk/briefdesk/internal/agents"
	"github.com/briefdesk/briefdesk/internal/api"
	"github.com/briefdesk/briefdesk/internal/api/handlers"
	"github.com/briefdesk/briefdesk/internal/api/middleware"
	"github.com/briefdesk/briefdesk/internal/articles"
	"github.com/briefdesk/briefdesk/internal/auth"
	"github.com/briefdesk/briefdesk/internal/classifier"
	"github.com/briefdesk/briefdesk/internal/config"
	"github.com/briefdesk/briefdesk/internal/hitl"
	"github.com/briefdesk/briefdesk/internal/navigation"
	"github.com/briefdesk/briefdesk/internal/orchestrator"
	"github.com/briefdesk/briefdesk/internal/retention"
	"github.com/briefdesk/briefdesk/internal/router"
	"github.com/briefdesk/briefdesk/internal/state"
	"github.com/briefdesk/briefdesk/internal/telemetry"
	"github.com/briefdesk/briefdesk/pkg/contracts"
)

// Config is the public configuration for the engine server.
type Config struct {
	Port         int
	Version      string
	OTELEnabled  bool
	OTELEndpoint string
	ServiceName  string
}

// Server holds the initialized briefdesk engine.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the conversation state store.
	// Exposed so hosting applications can close it on shutdown.
	Store contracts.Store

	// Engine is the chat orchestration engine behind the HTTP surface.
	Engine *orchestrator.Engine

	// Janitor sweeps expired confirmation checkpoints; run it in a
	// goroutine with the server's lifetime context.
	Janitor *retention.Janitor

	// Config is the server configuration.
	Config *Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := config.Load()
	return &Config{
		Port:         cfg.Port,
		Version:      cfg.Version,
		OTELEnabled:  cfg.Telemetry.Enabled,
		OTELEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	}
}

// New initializes all engine components and returns a ready Server.
// This is the primary entry point for main.go and embedders alike.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, LoadConfig())
}

// NewWithConfig initializes the engine with an explicit configuration.
func NewWithConfig(ctx context.Context, pubCfg *Config) (*Server, error) {
	// Build internal config from public config
	cfg := config.Load()
	if pubCfg.Port > 0 {
		cfg.Port = pubCfg.Port
	}

	// Initialize telemetry
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Conversation state store (memory or redis, per config)
	stateStore, err := state.New(state.Options{
		Driver:   cfg.State.Driver,
		RedisURL: cfg.State.RedisURL,
		TTL:      cfg.State.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("init state store: %w", err)
	}

	// Article store and navigation surface
	arts := articles.NewStore()
	seedSampleBriefs(ctx, arts)

	registry := navigation.NewRegistry()
	catalog := navigation.NewTopicCatalog(arts, 5*time.Minute)

	// Intent classifier: model-backed when OpenAI is configured,
	// rules-only otherwise.
	var completion classifier.CompletionClient
	if cfg.OpenAI.Enabled && cfg.OpenAI.APIKey != "" {
		completion = classifier.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
		log.Info().Str("model", cfg.OpenAI.Model).Msg("classifier: openai")
	} else {
		log.Info().Msg("classifier: rules only")
	}
	cls := classifier.New(completion, registry, catalog)

	// Orchestration pipeline
	manager := hitl.NewManager(stateStore, arts, cfg.HITL.ConfirmationTTL)
	ag := agents.New(agents.Deps{
		Registry: registry,
		Catalog:  catalog,
		Articles: arts,
		HITL:     manager,
	})
	rt := router.New(registry)
	engine := orchestrator.New(stateStore, cls, rt, ag, manager)

	// HTTP surface. Identity resolution walks service tokens, API keys,
	// then gateway headers; unresolved requests fall back to anonymous.
	identity := auth.NewProviderChain(
		auth.NewServiceTokenProvider(),
		auth.NewAPIKeyProvider(),
		middleware.HeaderProvider{},
	)
	h := handlers.New(engine, arts)
	apiRouter := api.NewRouter(cfg, h, identity)

	janitor := retention.NewJanitor(stateStore, cfg.HITL.JanitorInterval)

	return &Server{
		Handler:      apiRouter,
		Store:        stateStore,
		Engine:       engine,
		Janitor:      janitor,
		Config:       pubCfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// seedSampleBriefs gives a fresh in-memory deployment something to navigate
// and retrieve against. Errors are logged, not fatal.
func seedSampleBriefs(ctx context.Context, s *articles.Store) {
	seeds := []struct {
		topic, headline, content string
		keywords                 []string
	}{
		{
			topic:    "macro",
			headline: "Rate Path Expectations After the August Prints",
			content:  "Futures markets now price two cuts by year end. The labor revisions drove most of the repricing; inflation swaps barely moved.",
			keywords: []string{"rates", "inflation", "labor"},
		},
		{
			topic:    "energy",
			headline: "LNG Spot Cargoes Tighten Into Winter Restocking",
			content:  "Asian buyers returned to the spot market earlier than usual. European storage is ahead of the five-year average but terminal maintenance narrows the cushion.",
			keywords: []string{"lng", "storage", "spot"},
		},
		{
			topic:    "equities",
			headline: "Semiconductor Capex Guidance Diverges From Orders",
			content:  "Guidance raised across the large foundries while equipment order books flattened. The gap usually resolves within two quarters.",
			keywords: []string{"semiconductors", "capex"},
		},
	}

	for _, seed := range seeds {
		a, err := s.Create(ctx, seed.topic, seed.headline, "seed")
		if err != nil {
			log.Warn().Err(err).Str("topic", seed.topic).Msg("failed to seed brief")
			continue
		}
		if _, err := s.UpdateContent(ctx, a.ID, seed.headline, seed.content, seed.keywords); err != nil {
			log.Warn().Err(err).Str("article_id", a.ID).Msg("failed to fill seeded brief")
			continue
		}
		if _, err := s.Submit(ctx, a.ID); err == nil {
			if _, err := s.RequestPublish(ctx, a.ID); err == nil {
				if _, err := s.Publish(ctx, a.ID); err != nil {
					log.Warn().Err(err).Str("article_id", a.ID).Msg("failed to publish seeded brief")
				}
			}
		}
	}
	log.Info().Int("count", len(seeds)).Msg("sample briefs seeded")
}
