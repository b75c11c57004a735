package main

import (
	"context"
	"log"
	"time"

	"github.com/rawblock/ecg-auth-engine/internal/api"
	"github.com/rawblock/ecg-auth-engine/internal/auth"
	"github.com/rawblock/ecg-auth-engine/internal/config"
	"github.com/rawblock/ecg-auth-engine/internal/store"
	"github.com/rawblock/ecg-auth-engine/internal/transport"
)

func main() {
	log.Println("Starting ECG Biometric Auth Engine...")

	cfg := config.Load()

	jsonStore, err := store.NewJSONStore(cfg.DataDir + "/users.json")
	if err != nil {
		log.Fatalf("FATAL: failed to initialize user store: %v", err)
	}

	var auditSink auth.AuditSink
	if cfg.DatabaseURL != "" {
		auditStore, err := store.ConnectAudit(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: failed to connect audit database, continuing without it: %v", err)
		} else {
			defer auditStore.Close()
			if err := auditStore.InitSchema(context.Background()); err != nil {
				log.Printf("Warning: audit schema init failed: %v", err)
			}
			auditSink = auditStore
		}
	} else {
		log.Println("DATABASE_URL not set — running without the audit sink")
	}

	sessionTimeout := time.Duration(cfg.SessionTimeoutSec) * time.Second
	matcher, err := auth.NewMatcher(jsonStore, auditSink, cfg.SimilarityThreshold, sessionTimeout)
	if err != nil {
		log.Fatalf("FATAL: failed to load user store: %v", err)
	}

	go cleanupLoop(matcher)

	wsHub := api.NewHub()
	go wsHub.Run()

	transportServer := &transport.Server{
		Matcher:    matcher,
		SampleRate: cfg.SamplingRateHz,
		BufferSize: cfg.BufferSize,
		Events:     api.DashboardEvents{Hub: wsHub},
	}
	go func() {
		if err := transportServer.ListenAndServe(cfg.TransportAddr); err != nil {
			log.Fatalf("FATAL: transport server stopped: %v", err)
		}
	}()

	r := api.SetupRouter(matcher, wsHub)
	log.Printf("HTTP API listening on %s, line protocol listening on %s", cfg.HTTPAddr, cfg.TransportAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("FATAL: failed to start HTTP server: %v", err)
	}
}

// cleanupLoop periodically sweeps expired sessions so a client that never
// calls CMD:VERIFY or CMD:LOGOUT doesn't leave a stale session around
// forever.
func cleanupLoop(matcher *auth.Matcher) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		if n := matcher.CleanupExpiredSessions(); n > 0 {
			log.Printf("cleaned up %d expired sessions", n)
		}
	}
}
