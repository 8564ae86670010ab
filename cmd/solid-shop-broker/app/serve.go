package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redpencilio/solid-shop-search-service/internal/api"
	"github.com/redpencilio/solid-shop-search-service/internal/catalog"
	"github.com/redpencilio/solid-shop-search-service/internal/config"
	"github.com/redpencilio/solid-shop-search-service/internal/credentials"
	"github.com/redpencilio/solid-shop-search-service/internal/orders"
	"github.com/redpencilio/solid-shop-search-service/internal/payments"
	"github.com/redpencilio/solid-shop-search-service/internal/store"
	"github.com/redpencilio/solid-shop-search-service/internal/sync"
	"github.com/redpencilio/solid-shop-search-service/internal/tasks"
	"github.com/redpencilio/solid-shop-search-service/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shop broker server",
	Long: `Start the shop broker server.

The server requires a configuration file (--config) that specifies:
- The catalog SPARQL endpoint and graph IRIs
- The broker's identity-provider login
- Sync polling and payment provider settings`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
	serverRequestTimeout   = 30 * time.Second // Pod round trips can be slow
	serverReadTimeout      = 10 * time.Second
	serverWriteTimeout     = 35 * time.Second // Must be > serverRequestTimeout to let middleware handle timeout
	serverIdleTimeout      = 60 * time.Second
)

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides the configured address)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address"))
	if err != nil {
		slog.Error("Failed to bind address flag", "error", err)
		os.Exit(1)
	}
	err = viper.BindPFlag("config", serveCmd.Flags().Lookup("config"))
	if err != nil {
		slog.Error("Failed to bind config flag", "error", err)
		os.Exit(1)
	}

	if err := serveCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
		os.Exit(1)
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := viper.GetString("config")
	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	address := viper.GetString("address")
	if address == "" {
		address = cfg.GetAddress()
	}

	slog.Info("Starting shop broker server",
		"address", address,
		"endpoint", cfg.Catalog.Endpoint,
		"graph", cfg.GetApplicationGraph())

	catalogClient, err := catalog.New(cfg.Catalog.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	// The application session logs in once at startup. The server comes up
	// regardless; requests needing the session fail with a clear error until
	// login completes.
	session := credentials.NewSessionProvider(nil)
	clientSecret, err := cfg.Session.GetClientSecret()
	if err != nil {
		return err
	}
	go func() {
		if err := session.Login(context.Background(), cfg.Session.ClientID, clientSecret, cfg.Session.Issuer); err != nil {
			slog.Error("Application session login failed", "issuer", cfg.Session.Issuer, "error", err)
			return
		}
		webID, _ := session.WebID()
		slog.Info("Application session ready", "webId", webID)
	}()

	appGraph := cfg.GetApplicationGraph()
	credRepo := credentials.NewRepository(catalogClient, appGraph)
	resolver := credentials.NewResolver(credRepo, session)
	st := store.NewClient(catalogClient, resolver, []string{appGraph, cfg.GetTasksGraph()})

	ordersRepo := orders.NewRepository(catalogClient, appGraph)
	ordersSvc := orders.NewService(ordersRepo, st, session, appGraph,
		orders.WithDocumentPath(cfg.GetOfferingsDocument()))

	queue := tasks.NewQueue(catalogClient, cfg.GetTasksGraph())
	extractor := sync.NewExtractor(catalogClient, ordersRepo, st, resolver, appGraph,
		sync.WithUnknownTaskPolicy(sync.UnknownTaskPolicy(cfg.GetUnknownTaskPolicy())),
		sync.WithDocumentPaths(cfg.GetOfferingsDocument(), cfg.GetProductsDocument()),
	)

	metrics, err := telemetry.NewSyncMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("failed to register sync metrics: %w", err)
	}

	orchestrator := sync.NewOrchestrator(queue, extractor, st, sync.WithMetrics(metrics))

	coordinator := sync.NewCoordinator(orchestrator,
		sync.WithInterval(cfg.GetSyncInterval()),
		sync.WithJitter(cfg.GetSyncJitter()),
	)
	go func() {
		if err := coordinator.Start(context.Background()); err != nil {
			slog.Error("Sync coordinator failed", "error", err)
		}
	}()

	var redirectURL, webhookURL string
	var paymentOpts []payments.Option
	if cfg.Payments != nil {
		redirectURL = cfg.Payments.RedirectURL
		webhookURL = cfg.Payments.WebhookURL
		if cfg.Payments.BaseURL != "" {
			paymentOpts = append(paymentOpts, payments.WithBaseURL(cfg.Payments.BaseURL))
		}
	}
	paymentClient := payments.NewClient(redirectURL, webhookURL, paymentOpts...)

	routes := api.NewRoutes(api.Dependencies{
		Offerings:    ordersRepo,
		Orders:       ordersSvc,
		Payments:     paymentClient,
		Credentials:  credRepo,
		Orchestrator: orchestrator,
		Extractor:    extractor,
		Store:        st,
		Broker:       session,
	})

	router := api.NewServer(routes,
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			api.LoggingMiddleware,
		),
	)

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	go func() {
		slog.Info("Server listening", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	if err := coordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return err
	}

	slog.Info("Server shutdown complete")
	return nil
}
