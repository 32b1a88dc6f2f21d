package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/marzgo/internal/api"
	"github.com/creamcroissant/marzgo/internal/auth/token"
	"github.com/creamcroissant/marzgo/internal/cache"
	"github.com/creamcroissant/marzgo/internal/config"
	"github.com/creamcroissant/marzgo/internal/netinfo"
	"github.com/creamcroissant/marzgo/internal/repository"
	"github.com/creamcroissant/marzgo/internal/service"
	"github.com/creamcroissant/marzgo/internal/subscription"
	"github.com/creamcroissant/marzgo/internal/support/format"
	"github.com/creamcroissant/marzgo/internal/support/logging"
	"github.com/creamcroissant/marzgo/internal/template"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the subscription server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:     cfg.Log.SlogLevel(),
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	store, err := repository.NewMemoryStore(cfg)
	if err != nil {
		return err
	}

	cacheStore := cache.NewStore(cache.Options{
		DefaultTTL:      time.Hour,
		CleanupInterval: 10 * time.Minute,
	})

	serverIP := cfg.Subscription.ServerIP
	if serverIP == "" {
		provider := netinfo.NewProvider(cacheStore, cfg.Subscription.PublicIPEndpoints)
		serverIP = provider.PublicIP(ctx)
	}
	logger.Info("server ip resolved", "ip", serverIP)

	scaffolds := template.NewScaffoldStore(
		cfg.Subscription.ClashTemplate,
		cfg.Subscription.SingboxTemplate,
		cacheStore,
	)

	assembler := subscription.NewAssembler(subscription.Options{
		Inbounds:  store,
		Hosts:     store,
		Scaffolds: scaffolds,
		Render: func(tmpl string, vars *subscription.FormatVariables) string {
			return template.Render(tmpl, vars.Get)
		},
		ServerIP:   serverIP,
		FormatSize: format.ReadableSize,
	})

	tokens, err := token.NewManager(token.Options{
		SigningKey: []byte(cfg.Auth.SigningKey),
		Issuer:     cfg.Auth.Issuer,
		TTL:        cfg.Auth.TokenTTL,
		Leeway:     cfg.Auth.Leeway,
	})
	if err != nil {
		return err
	}

	subService := service.NewSubscriptionService(service.SubscriptionOptions{
		Users:               store,
		Assembler:           assembler,
		Logger:              logger,
		ProfileTitle:        cfg.Subscription.ProfileTitle,
		UpdateIntervalHours: cfg.Subscription.UpdateIntervalHours,
	})

	router := api.NewRouter(api.RouterConfig{
		Tokens:       tokens,
		Subscription: subService,
		Logger:       logger,
		Metrics:      cfg.Metrics,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.HTTP.Addr, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	logger.Info("http server shutting down")
	return server.Shutdown(shutdownCtx)
}
