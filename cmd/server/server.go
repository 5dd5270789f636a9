package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/config"
	"github.com/rahul4469/speciessight/internal/controllers"
	"github.com/rahul4469/speciessight/internal/crypto"
	"github.com/rahul4469/speciessight/internal/metrics"
	"github.com/rahul4469/speciessight/internal/middleware"
	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/services"
	"github.com/rahul4469/speciessight/internal/theme"
	"github.com/rahul4469/speciessight/internal/views"
	"github.com/rahul4469/speciessight/migrations"
	"github.com/rahul4469/speciessight/static"
	"github.com/rahul4469/speciessight/templates"
)

const shutdownTimeout = 30 * time.Second

func newPipeline(cfg *config.Config, m *metrics.Metrics, log *zap.Logger) (*services.Pipeline, error) {
	species, err := services.NewOpenAISpecies(services.OpenAISpeciesConfig{
		APIKey:        cfg.APIs.OpenAIAPIKey,
		BaseURL:       cfg.APIs.OpenAIBaseURL,
		ClassifyModel: cfg.APIs.OpenAIClassifyModel,
		DescribeModel: cfg.APIs.OpenAIDescribeModel,
		Timeout:       cfg.APIs.AIRequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	return services.NewPipeline(species, species, m, log), nil
}

func identityProviders(cfg *config.Config) []services.IdentityProvider {
	var providers []services.IdentityProvider
	if p := cfg.OAuth.GitHub; p.Enabled() {
		providers = append(providers, services.NewGitHubProvider(services.OAuthClientConfig{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  cfg.Server.BaseURL + "/auth/callback/" + models.ProviderGitHub,
		}))
	}
	if p := cfg.OAuth.Google; p.Enabled() {
		providers = append(providers, services.NewGoogleProvider(services.OAuthClientConfig{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURL:  cfg.Server.BaseURL + "/auth/callback/" + models.ProviderGoogle,
		}))
	}
	return providers
}

// useMiddleware installs the chain every route runs behind. The body limit
// and the gate come before CSRF, which parses form bodies.
func useMiddleware(r chi.Router, log *zap.Logger, m *metrics.Metrics, gate *middleware.AccessGate, csrfCfg middleware.CSRFConfig, maxBody int64) {
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log, m))
	r.Use(middleware.Recoverer(log))
	r.Use(theme.Middleware)
	r.Use(middleware.BodyLimit(maxBody))
	r.Use(gate.Handler)
	r.Use(middleware.CSRF(csrfCfg, log))
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	views.TemplateFS = templates.FS

	// Setup the Database ---------------
	log.Info("connecting to database")
	db, err := models.NewDatabase(ctx, models.DefaultDatabaseConfig(cfg.Database.URL))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.MigrateFS(ctx, migrations.FS, "."); err != nil {
		return err
	}

	health := map[string]controllers.HealthChecker{"database": db}

	var store models.SessionStore = models.NewPostgresSessionStore(db.Pool)
	if cfg.Security.SessionStore == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		redisStore := models.NewRedisSessionStore(client)
		if err := redisStore.Health(ctx); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = redisStore
		health["redis"] = redisStore
	}

	// Setup Services ---------------
	sessionService := models.NewSessionService(store)
	sessionService.SessionDuration = cfg.Security.SessionDuration
	sessionService.RefreshWindow = cfg.Security.SessionRefreshWindow
	userService := models.NewUserService(db.Pool, cfg.Security.BcryptCost)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	pipeline, err := newPipeline(cfg, m, log)
	if err != nil {
		return err
	}

	providers := identityProviders(cfg)
	var encryptor *crypto.Encryptor
	if len(providers) > 0 {
		encryptor, err = crypto.NewEncryptorFromBase64(cfg.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}
	}

	// Setup Controllers ---------------
	cookie := middleware.SessionCookie{Name: cfg.Security.SessionCookieName, Secure: cfg.Security.SecureCookies}

	authCtrl := controllers.NewAuthController(
		userService,
		sessionService,
		cookie,
		views.MustParseFS("pages/auth.gohtml"),
		controllers.Links(providers),
		log,
	)
	oauthCtrl := controllers.NewOAuthController(
		providers,
		userService,
		sessionService,
		cookie,
		encryptor,
		controllers.NewStateStore([]byte(cfg.Security.CSRFSecret), cfg.Security.SecureCookies),
		log,
	)
	classifyCtrl := controllers.NewClassifyController(
		pipeline,
		views.MustParseFS("pages/home.gohtml"),
		cfg.UI.LowConfidenceThreshold,
		cfg.UI.MaxUploadBytes,
		log,
	)
	themeCtrl := controllers.NewThemeController(cfg.Security.SecureCookies)
	healthCtrl := controllers.NewHealthController(health, log)

	gate := middleware.NewAccessGate(sessionService, userService, middleware.DefaultGateConfig(cookie), log)

	// Setup router and routes
	r := chi.NewRouter()
	useMiddleware(r, log, m, gate, middleware.CSRFConfig{
		Key:        []byte(cfg.Security.CSRFSecret),
		Secure:     cfg.Security.SecureCookies,
		JSONPrefix: "/api/",
	}, controllers.RequestBodyLimit(cfg.UI.MaxUploadBytes))

	// ---- Bypass Routes ----
	r.Get("/healthz", healthCtrl.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static.FS)))

	// ---- Public Routes ----
	r.Get("/auth", authCtrl.GetAuth)
	r.Post("/auth/signin", authCtrl.PostSignIn)
	r.Post("/auth/signup", authCtrl.PostSignUp)
	r.Get("/auth/{provider}", oauthCtrl.Start)
	r.Get("/auth/callback/{provider}", oauthCtrl.Callback)

	// ---- Protected Routes ----
	r.Get("/", classifyCtrl.GetHome)
	r.Post("/classify", classifyCtrl.PostClassify)
	r.Post("/api/classify", classifyCtrl.PostAPIClassify)
	r.Post("/theme", themeCtrl.PostTheme)
	r.Post("/signout", authCtrl.PostSignOut)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the Server
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Server.Environment),
			zap.Int("oauth_providers", len(providers)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
