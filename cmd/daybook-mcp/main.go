// cmd/daybook-mcp is the entry point for the Daybook MCP (Model Context
// Protocol) server.  It wires the storage backend, the source adapters, the
// timeline builder, and the session manager behind JSON-RPC 2.0 tools.
//
// Startup sequence:
//  1. Load configuration from environment variables (.env honored).
//  2. Open the storage backend (sqlite by default, postgres when configured).
//  3. Load the event rules table and start the hot-reload watcher.
//  4. Build the source adapters, each behind a circuit breaker.
//  5. Create the timeline builder and session manager.
//  6. Start the WebSocket update broadcaster.
//  7. Serve JSON-RPC 2.0 requests from stdin, writing responses to stdout.
//
// CRITICAL: ALL logging MUST go to stderr.  Any bytes written to stdout that
// are not valid JSON-RPC 2.0 response frames will corrupt the protocol.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/daybook-ai/daybook/internal/api/mcp"
	"github.com/daybook-ai/daybook/internal/config"
	"github.com/daybook-ai/daybook/internal/llm"
	"github.com/daybook-ai/daybook/internal/notify"
	"github.com/daybook-ai/daybook/internal/session"
	"github.com/daybook-ai/daybook/internal/sources"
	"github.com/daybook-ai/daybook/internal/storage"
	"github.com/daybook-ai/daybook/internal/storage/postgres"
	"github.com/daybook-ai/daybook/internal/storage/sqlite"
	"github.com/daybook-ai/daybook/internal/timeline"
)

// store is the combined backend contract both engines satisfy.
type store interface {
	storage.EventStore
	storage.SessionStore
	storage.OwnerResolver
	EnsureOwner(ctx context.Context, owner, displayName string) error
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.Storage.StorageEngine {
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres engine requires DAYBOOK_POSTGRES_DSN")
		}
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	case "", "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory %q: %w", cfg.Storage.DataPath, err)
		}
		return sqlite.NewStore(fmt.Sprintf("%s/daybook.db", cfg.Storage.DataPath))
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.StorageEngine)
	}
}

func main() {
	// Redirect the default logger to stderr so that any incidental log calls
	// (e.g. from imported packages) never pollute the stdout JSON-RPC stream.
	log.SetOutput(os.Stderr)
	log.SetPrefix("daybook-mcp: ")
	log.SetFlags(log.LstdFlags)

	// Load .env when present; environment variables take precedence.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer db.Close()

	// Set up a root context that is cancelled on SIGINT / SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	// Single-user installs can auto-provision the owner account.
	if owner := os.Getenv("DAYBOOK_OWNER"); owner != "" {
		if err := db.EnsureOwner(ctx, owner, owner); err != nil {
			log.Fatalf("failed to ensure owner %q: %v", owner, err)
		}
		log.Printf("owner: %s", owner)
	}

	// Event rules table, with hot reload on file change.
	rules, err := config.LoadEventRules(cfg.Session.RulesPath)
	if err != nil {
		log.Fatalf("failed to load event rules: %v", err)
	}
	rulesWatcher := notify.NewRulesWatcher(cfg.Session.RulesPath, rules)
	if err := rulesWatcher.Start(); err != nil {
		log.Printf("warning: rules watcher disabled: %v", err)
	} else {
		defer rulesWatcher.Stop()
	}

	// Source adapters. A provider without a configured URL is simply absent;
	// configured providers sit behind a circuit breaker.
	breakerCfg := sources.BreakerConfig{
		MaxFailures: uint32(cfg.Sources.BreakerFailures),
		Timeout:     time.Duration(cfg.Sources.BreakerResetSecs) * time.Second,
	}
	var device, receipts sources.Adapter
	if cfg.Sources.DeviceBaseURL != "" {
		device = sources.WithBreaker(sources.NewDeviceClient(sources.DeviceConfig{
			BaseURL:           cfg.Sources.DeviceBaseURL,
			APIKey:            cfg.Sources.DeviceAPIKey,
			RequestsPerSecond: cfg.Sources.DeviceRateLimit,
		}), breakerCfg)
	}
	if cfg.Sources.ReceiptsBaseURL != "" {
		receipts = sources.WithBreaker(sources.NewReceiptsClient(sources.ReceiptsConfig{
			BaseURL: cfg.Sources.ReceiptsBaseURL,
			APIKey:  cfg.Sources.ReceiptsAPIKey,
		}), breakerCfg)
	}

	builder := timeline.NewBuilder(db, device, sources.NewStoreAdapter(db), receipts, timeline.Options{
		GapThreshold: time.Duration(cfg.Timeline.GapThresholdMinutes) * time.Minute,
		FetchTimeout: cfg.Timeline.FetchTimeout,
	})

	// LLM providers are optional: no provider means no distillation pass and
	// no similarity search, both of which degrade cleanly.
	generator, err := llm.NewTextGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("failed to create LLM client: %v", err)
	}
	embedder, err := llm.NewEmbeddingGenerator(cfg.LLM)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}

	managerOpts := []session.Option{
		session.WithEventStore(db),
		session.WithSessionStore(db),
		session.WithRules(rules),
	}
	if generator != nil {
		log.Printf("distillation model: %s", generator.GetModel())
		managerOpts = append(managerOpts, session.WithDistiller(llm.NewSummaryDistiller(generator)))
	}
	manager, err := session.NewManager(builder, session.Config{
		DistillAfterTurns: cfg.Session.DistillAfterTurns,
		KeepVerbatimTurns: cfg.Session.KeepVerbatimTurns,
		EntityCacheSize:   cfg.Session.EntityCacheSize,
	}, managerOpts...)
	if err != nil {
		log.Fatalf("failed to create session manager: %v", err)
	}

	// WebSocket broadcaster for session updates.
	broadcaster := notify.NewBroadcaster()
	go broadcaster.Run()
	defer broadcaster.Stop()

	mux := http.NewServeMux()
	mux.Handle("/ws", broadcaster)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Printf("update stream listening on ws://%s/ws", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("update stream stopped: %v", err)
		}
	}()

	srv := mcp.NewServer(builder, manager,
		mcp.WithConfig(cfg),
		mcp.WithEventStore(db),
		mcp.WithEmbedder(embedder),
		mcp.WithBroadcaster(broadcaster),
	)

	transport := mcp.NewStdioTransport(srv, os.Stdin, os.Stdout)

	log.Println("ready — serving JSON-RPC 2.0 on stdin/stdout")

	if err := transport.Serve(ctx); err != nil {
		// A non-nil error here is normal (context cancellation) or indicates a
		// fatal stdin/stdout problem.  Either way it is informational only.
		log.Printf("transport stopped: %v", err)
	}
}
