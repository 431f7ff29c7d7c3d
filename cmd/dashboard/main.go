package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/library-admin/internal/client"
	"github.com/jwalitptl/library-admin/internal/config"
	"github.com/jwalitptl/library-admin/internal/handler/health"
	"github.com/jwalitptl/library-admin/internal/handler/nav"
	orderHandler "github.com/jwalitptl/library-admin/internal/handler/order"
	promHandler "github.com/jwalitptl/library-admin/internal/handler/prometheus"
	"github.com/jwalitptl/library-admin/internal/middleware"
	"github.com/jwalitptl/library-admin/internal/router"
	"github.com/jwalitptl/library-admin/internal/service/dashboard"
	"github.com/jwalitptl/library-admin/internal/service/order"
	"github.com/jwalitptl/library-admin/internal/session"
	"github.com/jwalitptl/library-admin/internal/worker"
	"github.com/jwalitptl/library-admin/pkg/logger"
	"github.com/jwalitptl/library-admin/pkg/messaging"
	"github.com/jwalitptl/library-admin/pkg/messaging/redis"
	"github.com/jwalitptl/library-admin/pkg/metrics"
)

const metricsNamespace = "library_dashboard"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load configuration")
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	m := metrics.New(metricsNamespace, registry)

	// Session store
	store, err := newSessionStore(ctx, cfg.Session, log)
	if err != nil {
		log.Fatal(err, "failed to initialize session store")
	}
	if cfg.Session.Token != "" {
		if err := seedSession(ctx, store, cfg.Session); err != nil {
			log.Fatal(err, "failed to seed session")
		}
	}

	// Library API client
	api, err := client.New(client.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		RateLimit:       cfg.API.RateLimit,
		Burst:           cfg.API.Burst,
		BreakerFailures: cfg.API.BreakerFailures,
		BreakerTimeout:  cfg.API.BreakerTimeout,
	}, session.Session{}, client.WithLogger(log), client.WithMetrics(m))
	if err != nil {
		log.Fatal(err, "failed to initialize library api client")
	}

	// Transition events
	instanceID := cfg.Events.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	var broker messaging.Broker
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.Events.Enabled {
		broker, err = redis.NewRedisBroker(ctx, redis.Config{URL: cfg.Events.RedisURL}, log)
		if err != nil {
			log.Fatal(err, "failed to connect to Redis")
		}
		publisher = broker
	}

	poller := worker.NewPoller(log, m)
	feed := order.NewFeed(cfg.Orders.FeedLimit)
	dash := dashboard.New(store, api, poller, dashboard.Options{
		SessionID: cfg.Session.ID,
		Views: []order.View{
			order.ViewActive.WithPollInterval(cfg.Orders.ActivePoll),
			order.ViewNew.WithPollInterval(cfg.Orders.NewPoll),
			order.ViewOverdue,
			order.ViewArchive,
			order.ViewBlacklist,
		},
		Order: order.Options{
			ConfirmDelay: cfg.Orders.ConfirmDelay,
			CancelMode:   order.CancelMode(cfg.Orders.CancelMode),
			Notifier:     feed,
			Publisher:    publisher,
			Channel:      cfg.Events.Channel,
			InstanceID:   instanceID,
			Logger:       log,
			Metrics:      m,
		},
		Logger: log,
	})
	if err := dash.Start(ctx); err != nil {
		// the session watch keeps retrying; a later login resolves it
		log.Warn("dashboard started without a resolved permission", "error", err.Error())
	}

	if broker != nil {
		refresher := worker.NewRefresher(broker, dash.Refreshables, worker.RefresherConfig{
			Channel:       cfg.Events.Channel,
			InstanceID:    instanceID,
			RetryAttempts: 3,
			RetryDelay:    cfg.Events.RetryDelay,
		}, log)
		go func() {
			if err := refresher.Start(ctx); err != nil {
				log.Error(err, "transition refresher stopped")
			}
		}()
	}

	// Setup router
	r := router.NewRouter(router.RouterConfig{
		RateLimit:   rate.Limit(cfg.Server.RateLimit),
		RateBurst:   cfg.Server.Burst,
		MaxBodySize: middleware.DefaultMaxBodySize,
		CORSConfig: middleware.CORSConfig{
			AllowOrigins: cfg.Server.AllowOrigins,
			MaxAge:       10 * time.Minute,
		},
		Registerer: registry,
		Logger:     log,
	})
	r.Setup(
		[]router.Handler{health.NewHandler(dash), promHandler.New(registry)},
		[]router.Handler{nav.NewHandler(dash), orderHandler.NewHandler(dash, feed)},
	)

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info("starting server", "addr", srv.Addr, "instance_id", instanceID)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	cancel()
	dash.Close()
	poller.Close()
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Error(err, "failed to close broker")
		}
	}

	log.Info("server exited properly")
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig, log *logger.Logger) (session.Store, error) {
	switch cfg.Store {
	case "memory":
		return session.NewMemoryStore(cfg.TTL, log), nil
	case "redis":
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse session redis url: %w", err)
		}
		rc := goredis.NewClient(opts)
		if err := rc.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach session redis: %w", err)
		}
		return session.NewRedisStore(rc, "", cfg.TTL, log), nil
	default:
		return session.NewFileStore(cfg.Path, log), nil
	}
}

func seedSession(ctx context.Context, store session.Store, cfg config.SessionConfig) error {
	roles, err := session.ParseRoles(cfg.Roles)
	if err != nil {
		return fmt.Errorf("invalid session roles: %w", err)
	}
	return store.Save(ctx, session.Session{ID: cfg.ID, Token: cfg.Token, Roles: roles})
}
