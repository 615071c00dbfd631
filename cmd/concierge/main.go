package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/templeobijnr/easy-islanders/internal/app"
	"github.com/templeobijnr/easy-islanders/internal/clock"
	"github.com/templeobijnr/easy-islanders/internal/config"
	"github.com/templeobijnr/easy-islanders/internal/provider"
	"github.com/templeobijnr/easy-islanders/internal/storage/postgres"
	transporthttp "github.com/templeobijnr/easy-islanders/internal/transport/http"
	"github.com/templeobijnr/easy-islanders/migrations"
)

const shutdownTimeout = 10 * time.Second
const purgeInterval = time.Hour

func main() {
	logger := log.Default()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	clk := clock.NewSystem()

	idemRepo := postgres.NewIdempotencyRepository(pool)
	idem := app.NewIdempotencyLedger(idemRepo, clk, app.WithRecordTTL(cfg.IdempotencyTTL))

	ledgerRepo := postgres.NewLedgerRepository(pool)
	ledgerSvc := app.NewLedgerService(ledgerRepo, idem, clk, app.WithHoldTTL(cfg.HoldTTL))

	gateRepo := postgres.NewGateRepository(pool)
	gateSvc := app.NewGateService(gateRepo, ledgerSvc, clk, app.WithExpiryBuffer(cfg.ConfirmExpiryBuffer))

	var messagingProvider app.MessagingProvider
	if cfg.ProviderWebhookURL != "" {
		messagingProvider = provider.NewWebhookProvider(cfg.ProviderWebhookURL, cfg.ProviderTimeout)
	} else {
		logger.Printf("WARN: PROVIDER_WEBHOOK_URL not set, outbound messages go to the log")
		messagingProvider = provider.NewLogProvider(logger)
	}
	dispatchSvc := app.NewDispatchService(idem, messagingProvider, clk,
		app.WithDispatchMaxAttempts(cfg.DispatchMaxAttempts))

	adminSvc := app.NewAdminService(ledgerRepo, idem)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/holds", transporthttp.HandleCreateHold(ledgerSvc))
	mux.Handle("/holds/", transporthttp.HandleHoldAction(ledgerSvc))
	mux.Handle("/sessions/", sessionRouter(gateSvc))
	mux.Handle("/messages", transporthttp.HandleSendMessage(dispatchSvc))
	mux.Handle("/admin/transactions", transporthttp.HandleAdminTransactions(adminSvc))
	mux.Handle("/admin/messages", transporthttp.HandleAdminMessages(adminSvc))
	mux.Handle("/admin/idempotency/purge", transporthttp.HandleAdminPurge(adminSvc))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: handler,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeLoop(stopCtx, idem, logger)

	log.Printf("concierge listening on :%d", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	log.Printf("server stopped")
}

// sessionRouter splits the two /sessions/{id}/... endpoints the stdlib mux
// cannot tell apart.
func sessionRouter(gateSvc *app.GateService) http.Handler {
	pending := transporthttp.HandleSessionPending(gateSvc)
	reply := transporthttp.HandleSessionReply(gateSvc)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/reply") {
			reply.ServeHTTP(w, r)
			return
		}
		pending.ServeHTTP(w, r)
	})
}

func purgeLoop(ctx context.Context, idem *app.IdempotencyLedger, logger *log.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := idem.PurgeExpired(ctx)
			if err != nil {
				logger.Printf("purge idempotency records: %v", err)
				continue
			}
			if n > 0 {
				logger.Printf("purged %d expired idempotency records", n)
			}
		}
	}
}
