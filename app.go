package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/sessions"
	"github.com/jkurtz678/reddit-or-replicant/db/sqlite3"
	"github.com/jkurtz678/reddit-or-replicant/game"
	"github.com/jkurtz678/reddit-or-replicant/gen"
	"github.com/jkurtz678/reddit-or-replicant/mixer"
	"github.com/jkurtz678/reddit-or-replicant/random"
	"github.com/jkurtz678/reddit-or-replicant/reddit"
	"github.com/jkurtz678/reddit-or-replicant/server"
	"github.com/jkurtz678/reddit-or-replicant/web"
	"github.com/nasermirzaei89/env"
	"golang.org/x/crypto/bcrypt"
)

type App struct {
	server  *server.Server
	handler *web.Handler
	db      *sql.DB
}

func NewApp(ctx context.Context) (*App, error) {
	db, err := sqlite3.NewDB(ctx, env.GetString("DB_DSN", "file:replicant.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	err = sqlite3.MigrateUp(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	postRepo := sqlite3.NewPostRepository(db)
	userRepo := sqlite3.NewUserRepository(db)
	guessRepo := sqlite3.NewGuessRepository(db)

	model, err := gen.NewGoogleModel(ctx,
		env.GetString("GENAI_API_KEY", ""),
		env.GetString("GENAI_MODEL", ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation model: %w", err)
	}

	catalog, err := gen.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load archetype catalog: %w", err)
	}

	newGenerator := func(rng *rand.Rand) mixer.Generator {
		return gen.NewRound(model, catalog, rng)
	}

	gameSvc := game.NewService(reddit.NewFetcher(), newGenerator, postRepo, userRepo, guessRepo)

	adminPasswordHash, err := bcrypt.GenerateFromPassword(
		[]byte(env.GetString("ADMIN_PASSWORD", random.String(16))),
		bcrypt.DefaultCost,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	sessionName := env.GetString("SESSION_NAME", "replicant-"+random.String(4))
	sessionKey := env.GetString("SESSION_KEY", random.String(32))
	cookieStore := sessions.NewCookieStore([]byte(sessionKey))

	httpHandler := web.NewHandler(gameSvc, cookieStore, sessionName, adminPasswordHash)

	app := &App{
		server:  newServer(),
		handler: httpHandler,
		db:      db,
	}

	return app, nil
}

func (app *App) Run(ctx context.Context) error {
	// Handle SIGINT (CTRL+C) gracefully.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	defer func() {
		if app.db != nil {
			err := app.db.Close()
			if err != nil {
				slog.ErrorContext(ctx, "failed to close database", "error", err)
			}
		}
	}()

	err := app.server.Run(ctx, app.handler)
	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

func newServer() *server.Server {
	server := &server.Server{
		Port: env.GetString("PORT", server.DefaultPort),
		Host: env.GetString("HOST", ""),
		TLS: server.ServerTLS{
			Enabled: env.GetBool("TLS_ENABLED", false),
			Mode:    env.GetString("TLS_MODE", server.DefaultTLSMode),
			AutoCert: &server.ServerTLSAutoCert{
				CacheDir: env.GetString("TLS_AUTOCERT_CACHE_DIR", "./cert-cache"),
				Domains:  env.GetStringSlice("TLS_AUTOCERT_DOMAINS", []string{}),
				Email:    env.GetString("TLS_AUTOCERT_EMAIL", ""),
			},
			CertFile: env.GetString("TLS_CERT_FILE", ""),
			KeyFile:  env.GetString("TLS_KEY_FILE", ""),
		},
	}

	return server
}

func getLogLevelFromEnv() slog.Level {
	levelStr := env.GetString("LOG_LEVEL", "info")
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", levelStr)

		return slog.LevelInfo
	}
}
