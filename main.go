package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/auth"
	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/config"
	"github.com/kosix-io/datahub/pkg/database"
	"github.com/kosix-io/datahub/pkg/handlers"
	"github.com/kosix-io/datahub/pkg/logging"
	"github.com/kosix-io/datahub/pkg/middleware"
	"github.com/kosix-io/datahub/pkg/repositories"
	"github.com/kosix-io/datahub/pkg/retry"
	"github.com/kosix-io/datahub/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	connStr := cfg.Database.ConnectionString()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(connStr)),
	)

	// Migrations run through database/sql (required by golang-migrate);
	// the service itself uses a pgx pool.
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.String("error", logging.SanitizeError(err)))
	}
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
	})
	if err != nil {
		logger.Fatal("Failed to run migrations", zap.String("error", logging.SanitizeError(err)))
	}
	_ = sqlDB.Close()

	// The database may still be coming up when the service starts.
	var db *database.DB
	err = retry.Do(ctx, retry.DefaultConfig(), func() error {
		var connErr error
		db, connErr = database.NewConnection(ctx, &database.Config{
			URL:            connStr,
			MaxConnections: cfg.Database.MaxConnections,
		})
		return connErr
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Repositories
	dataSourceRepo := repositories.NewDataSourceRepository(db)
	accountRepo := repositories.NewAccountRepository(db)
	teamRepo := repositories.NewTeamRepository(db)
	sessionRepo := repositories.NewSessionRepository(db)
	otpRepo := repositories.NewOTPRepository(db)

	// Services
	authorizer := authz.NewAuthorizer(teamRepo)
	dataSourceService := services.NewDataSourceService(dataSourceRepo, accountRepo, teamRepo, authorizer, logger)
	teamService := services.NewTeamService(teamRepo, accountRepo, authorizer, logger)
	accountService := services.NewAccountService(accountRepo, sessionRepo, otpRepo,
		time.Duration(cfg.OTP.TTLMinutes)*time.Minute, logger)

	// HTTP surface
	authService := auth.NewAuthService(cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTokenTTLMinutes)*time.Minute, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewDataSourcesHandler(dataSourceService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewTeamsHandler(teamService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAccountsHandler(accountService, logger).RegisterRoutes(mux, authMiddleware)

	handler := middleware.RequestLogger(logger)(mux)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("Starting datahub", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
