package main

import (
	"context"
	"expvar"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"prbridge/internal"
	"prbridge/pkg/bridge"
	"prbridge/webhook"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	filters, err := internal.NewFilterEngine(internal.FilterConfig{
		Filters: cfg.Filters,
		Strict:  cfg.FiltersStrict,
		Logger:  internal.NewLogger("filters"),
	})
	if err != nil {
		logger.Fatalf("compile filters: %v", err)
	}

	sink, err := internal.NewSink(cfg.Sink, cfg.Discord.WebhookURL)
	if err != nil {
		logger.Fatalf("sink: %v", err)
	}
	defer sink.Close()

	handler := webhook.NewGitHubHandler(
		cfg.GitHub.Secret,
		bridge.Config{
			UserIDs:      cfg.Discord.UserIDs,
			RoleIDs:      cfg.Discord.RoleIDs,
			ReviewerTeam: cfg.GitHub.ReviewerTeam,
		},
		filters,
		sink,
		internal.NewLogger("webhook"),
		cfg.Server.MaxBodyBytes,
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, internal.NewRateLimitHandler(
		handler,
		cfg.Server.RateLimitRPS,
		cfg.Server.RateLimitBurst,
		time.Minute,
	))
	if cfg.Server.MetricsEnabled {
		mux.Handle(cfg.Server.MetricsPath, expvar.Handler())
		logger.Printf("metrics enabled on %s", cfg.Server.MetricsPath)
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}
