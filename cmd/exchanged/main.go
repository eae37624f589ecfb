// Command exchanged runs the keeper-facing HTTP daemon over the exchange
// core's "Ledger program surface": it opens the trie-backed state store,
// the bolt-backed trade event buffer, and (optionally) a Postgres
// projection of it, then serves the rpc package's chi router until a
// shutdown signal arrives, following an oracle-attesterd-style daemon
// bootstrap (config load → telemetry init
// → storage open → server construct → signal-aware ListenAndServe/
// Shutdown).
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gmsolcore/config"
	"gmsolcore/core/events"
	"gmsolcore/native/common"
	"gmsolcore/native/tradeevent"
	"gmsolcore/observability/logging"
	telemetry "gmsolcore/observability/otel"
	"gmsolcore/oracle"
	"gmsolcore/rpc"
	"gmsolcore/storage"
	"gmsolcore/storage/trie"

	"gmsolcore/core/state"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./exchanged.toml", "path to the keeper daemon config")
	var projectionDSN string
	flag.StringVar(&projectionDSN, "projection-dsn", "", "optional Postgres DSN for the relational trade-event projection")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("GMSOL_ENV"))
	logger := logging.Setup("exchanged", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "exchanged",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    true,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}

	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		return fmt.Errorf("open state trie: %w", err)
	}
	manager := state.NewManager(tr)

	emitter := events.NoopEmitter{}

	tradesPath := cfg.DataDir + "/tradeevents.bolt"
	trades, err := tradeevent.Open(tradesPath, emitter)
	if err != nil {
		return fmt.Errorf("open trade event buffer: %w", err)
	}
	defer func() { _ = trades.Close() }()

	if projectionDSN != "" {
		gdb, err := gorm.Open(postgres.Open(projectionDSN), &gorm.Config{})
		if err != nil {
			return fmt.Errorf("connect projection db: %w", err)
		}
		projector, err := tradeevent.NewProjector(gdb)
		if err != nil {
			return fmt.Errorf("migrate projection schema: %w", err)
		}
		unsubscribe := projector.Subscribe(trades, cfg.StoreID)
		defer unsubscribe()
		logger.Info("trade event projection enabled", slog.String("store_id", cfg.StoreID))
	}

	keyBytes, err := decodeKeeperKey(cfg.KeeperKey)
	if err != nil {
		return fmt.Errorf("decode keeper key: %w", err)
	}
	auth := rpc.NewAuthenticator(keyBytes, "gmsolcore-exchanged")

	rateLimiter := rpc.NewRateLimiter(map[string]rpc.RateLimit{
		"POST /v1/orders":               {RatePerSecond: 20, Burst: 40},
		"POST /v1/actions":              {RatePerSecond: 20, Burst: 40},
		"POST /v1/positions/liquidate":  {RatePerSecond: 10, Burst: 20},
		"POST /v1/positions/auto-deleverage": {RatePerSecond: 10, Burst: 20},
		"POST /v1/oracle/prices":        {RatePerSecond: 5, Burst: 10},
	})
	idempo := rpc.NewIdempotencyStore(15 * time.Minute)

	priceSource := oracle.NewMemorySource()
	quotaStore := common.NewStateStore(manager)

	server := rpc.NewServer(
		manager,
		cfg.StoreID,
		trades,
		priceSource,
		quotaStore,
		emitter,
		auth,
		rateLimiter,
		idempo,
		uint32(cfg.Global.RequestExpirationSeconds()),
		uint32(cfg.Global.ClaimableWindowSeconds()),
		cfg.Global.MaxAdlOraclePriceAgeSeconds(),
	)

	httpServer := &http.Server{
		Addr:         cfg.RPCAddress,
		Handler:      server.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("exchanged listening", slog.String("addr", cfg.RPCAddress), slog.String("store_id", cfg.StoreID))
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case <-stopCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			_ = httpServer.Close()
			return err
		}
		return nil
	case err := <-errs:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func decodeKeeperKey(hexKey string) ([]byte, error) {
	if strings.TrimSpace(hexKey) == "" {
		return nil, fmt.Errorf("keeper key is not configured")
	}
	return hex.DecodeString(hexKey)
}
