// main wires high-level dependencies, exposes the HTTP router, and
// keeps the server lifecycle small. Business logic lives in the
// internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kindmesh/internal/audit"
	"kindmesh/internal/credential"
	"kindmesh/internal/identity"
	identityservice "kindmesh/internal/identity/service"
	identitystore "kindmesh/internal/identity/store"
	interactionservice "kindmesh/internal/interaction/service"
	interactionstore "kindmesh/internal/interaction/store"
	"kindmesh/internal/lockout"
	"kindmesh/internal/platform/config"
	"kindmesh/internal/platform/httpserver"
	"kindmesh/internal/platform/logger"
	"kindmesh/internal/platform/metrics"
	platformredis "kindmesh/internal/platform/redis"
	recipientservice "kindmesh/internal/recipient/service"
	recipientstore "kindmesh/internal/recipient/store"
	"kindmesh/internal/storage/postgres"
	surveyservice "kindmesh/internal/survey/service"
	surveystore "kindmesh/internal/survey/store"
	httptransport "kindmesh/internal/transport/http"
	dErrors "kindmesh/pkg/domain-errors"
	"kindmesh/pkg/platform/sentinel"
	"kindmesh/pkg/platform/token"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()

	var (
		db           *sql.DB
		userStore    identitystore.Store
		recStore     recipientstore.Store
		ledgerStore  interactionstore.Store
		catalogStore surveystore.CatalogStore
		respStore    surveystore.ResponseStore
		auditStore   audit.Store
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("schema migration failed", "error", err.Error())
			os.Exit(1)
		}
		userStore = identitystore.NewPostgres(db, cfg.SeedUsername)
		recStore = recipientstore.NewPostgres(db)
		ledgerStore = interactionstore.NewPostgres(db)
		catalogStore = surveystore.NewPostgresCatalog(db)
		respStore = surveystore.NewPostgresResponses(db)
		auditStore = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		userStore = identitystore.NewInMemory(cfg.SeedUsername)
		recStore = recipientstore.NewInMemory()
		ledgerStore = interactionstore.NewInMemory()
		catalogStore = surveystore.NewInMemoryCatalog()
		respStore = surveystore.NewInMemoryResponses()
		auditStore = audit.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var lockoutStore lockout.Store
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lockoutStore = lockout.NewRedisStore(redisClient.Client)
		log.Info("using redis lockout store")
	} else {
		lockoutStore = lockout.NewInMemoryStore()
	}
	guard := lockout.NewGuard(lockoutStore, lockout.DefaultThreshold, lockout.DefaultWindow)

	publisher := audit.NewPublisher(auditStore, audit.WithAsyncBuffer(256))
	defer publisher.Close()

	identitySvc := identityservice.New(userStore, credential.NewHasher(),
		identityservice.WithLogger(log),
		identityservice.WithMetrics(m),
		identityservice.WithLockout(guard),
		identityservice.WithAuditPublisher(publisher),
	)
	recipientSvc := recipientservice.New(recStore, recipientservice.WithLogger(log))
	ledgerSvc := interactionservice.New(ledgerStore, userStore, recipientSvc,
		interactionservice.WithLogger(log),
		interactionservice.WithMetrics(m),
		interactionservice.WithAuditPublisher(publisher),
	)
	surveySvc := surveyservice.New(catalogStore, respStore, recipientSvc,
		surveyservice.WithLogger(log),
		surveyservice.WithMetrics(m),
		surveyservice.WithAuditPublisher(publisher),
	)

	if err := seedAccount(ctx, identitySvc, cfg); err != nil {
		log.Error("seed account bootstrap failed", "error", err.Error())
		os.Exit(1)
	}

	manager := token.NewManager(cfg.JWTSigningKey, 12*time.Hour)
	router := httptransport.NewRouter(httptransport.Deps{
		Identity:    identitySvc,
		Recipients:  recipientSvc,
		Interaction: ledgerSvc,
		Surveys:     surveySvc,
		Tokens:      manager,
		Validator:   httptransport.NewTokenValidator(manager),
		Logger:      log,
		Metrics:     m,
		HealthCheck: func() bool {
			if db == nil {
				return true
			}
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return db.PingContext(pingCtx) == nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting kindmesh", "addr", cfg.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Error("server error", "error", err.Error())
		os.Exit(1)
	case <-quit:
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
	log.Info("server stopped")
}

// seedAccount creates the bootstrap admin when it does not exist yet.
// The seed is excluded from the first-admin election, so creating it
// here never consumes the slot.
func seedAccount(ctx context.Context, svc *identityservice.Service, cfg config.Config) error {
	_, err := svc.CreateUser(ctx, identity.NewUser{
		Username: cfg.SeedUsername,
		Password: cfg.SeedPassword,
		Role:     identity.RoleAdmin,
	})
	if dErrors.HasCode(err, dErrors.CodeConflict) || errors.Is(err, sentinel.ErrConflict) {
		return nil
	}
	return err
}
