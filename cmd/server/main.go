package main

import (
	"context"
	"log"
	"time"

	"github.com/shopnex/helpdesk/internal/ai"
	"github.com/shopnex/helpdesk/internal/catalog"
	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/config"
	"github.com/shopnex/helpdesk/internal/db"
	"github.com/shopnex/helpdesk/internal/httpapi"
	"github.com/shopnex/helpdesk/internal/httpapi/handlers"
	"github.com/shopnex/helpdesk/internal/realtime"
	"github.com/shopnex/helpdesk/internal/store/rabbitmq"
	"github.com/shopnex/helpdesk/internal/store/redisstore"
	"github.com/shopnex/helpdesk/internal/support"
	"github.com/shopnex/helpdesk/internal/triage"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := chat.NewRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		log.Fatalf("automigrate: %v", err)
	}

	// presence mirror is best-effort; the server runs without Redis
	var rds *redisstore.Store
	var presence chat.Presence
	{
		s := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.Ping(ctx); err != nil {
			log.Printf("[server] redis unavailable, presence disabled: %v", err)
			_ = s.Close()
		} else {
			rds = s
			presence = s
		}
		cancel()
	}

	// durable escalation queue is best-effort too
	var publisher chat.EscalationPublisher
	if pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue); err != nil {
		log.Printf("[server] rabbit unavailable, escalation queue disabled: %v", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	chatSvc := chat.NewService(repo, nil, publisher, presence)

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	lists, err := triage.LoadLists(cfg.TriageRulesPath)
	if err != nil {
		log.Printf("[server] triage rules not loaded, using defaults: %v", err)
	}
	classifier := triage.NewClassifier(lists)

	provider, err := ai.New(cfg.AIProvider, ai.Options{
		OllamaBaseURL:     cfg.OllamaBaseURL,
		OllamaModel:       cfg.OllamaModel,
		OpenRouterBaseURL: cfg.OpenRouterBaseURL,
		OpenRouterAPIKey:  cfg.OpenRouterAPIKey,
		OpenRouterModel:   cfg.OpenRouterModel,
		SiteURL:           cfg.OpenRouterSiteURL,
		AppName:           cfg.OpenRouterAppName,
	})
	if err != nil {
		log.Fatalf("ai provider: %v", err)
	}

	supportSvc := support.NewService(cat, classifier, provider, chatSvc)

	var ws *realtime.Handler
	if cfg.RealtimeEnabled {
		hub := realtime.NewHub()
		chatSvc.SetNotifier(hub)
		ws = realtime.NewHandler(hub, chatSvc)
	}

	h := handlers.NewHandler(cfg, supportSvc, chatSvc, rds)
	r := httpapi.NewRouter(cfg, h, ws)

	log.Printf("server listening on %s realtime=%t", cfg.HTTPAddr, cfg.RealtimeEnabled)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
