package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/grocery-cart/internal/cart"
	"github.com/nikolayk812/grocery-cart/internal/catalog"
	"github.com/nikolayk812/grocery-cart/internal/checkout"
	"github.com/nikolayk812/grocery-cart/internal/config"
	"github.com/nikolayk812/grocery-cart/internal/db"
	"github.com/nikolayk812/grocery-cart/internal/docstore"
	"github.com/nikolayk812/grocery-cart/internal/httpapi"
	"github.com/nikolayk812/grocery-cart/internal/logger"
	"github.com/nikolayk812/grocery-cart/internal/port"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config.Load: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Service: "cartd", Env: cfg.AppEnv, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger.New: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("cartd stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if cfg.DocStore == config.DocStorePostgres || cfg.Catalog == config.CatalogPostgres {
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.PostgresDSN, log); err != nil {
				return fmt.Errorf("db.RunMigrations: %w", err)
			}
		}

		p, err := db.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("db.NewPool: %w", err)
		}
		defer p.Close()
		pool = p
	}

	docs, closeDocs, err := newDocumentStore(cfg, pool, log)
	if err != nil {
		return fmt.Errorf("newDocumentStore: %w", err)
	}
	defer closeDocs()

	promotions, err := newPromotionCatalog(cfg, pool, log)
	if err != nil {
		return fmt.Errorf("newPromotionCatalog: %w", err)
	}

	session, err := cart.Open(ctx, docs, cart.WithLogger(log))
	if err != nil {
		return fmt.Errorf("cart.Open: %w", err)
	}

	builderOpts := []checkout.Option{
		checkout.WithOrigin(session.Origin()),
		checkout.WithCurrency(cfg.Currency),
		checkout.WithShippingFee(cfg.ShippingFee),
		checkout.WithLogger(log),
	}

	if cfg.RabbitMQURL != "" {
		publisher, closePublisher, err := newPublisher(cfg)
		if err != nil {
			return fmt.Errorf("newPublisher: %w", err)
		}
		defer closePublisher()
		builderOpts = append(builderOpts, checkout.WithPublisher(publisher))
	}

	builder := checkout.NewBuilder(docs, session.Selection, promotions, builderOpts...)

	h := httpapi.NewHandler(session, builder, cfg.RequestTimeout, log)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.Follow(gctx)
	})

	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr),
			zap.String("docstore", cfg.DocStore), zap.String("catalog", cfg.Catalog))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server.ListenAndServe: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newDocumentStore(cfg config.Config, pool *pgxpool.Pool, log *zap.Logger) (port.DocumentStore, func(), error) {
	switch cfg.DocStore {
	case config.DocStoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store, err := docstore.NewRedis(client, cfg.Namespace, log)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("docstore.NewRedis: %w", err)
		}
		return store, func() { _ = client.Close() }, nil

	case config.DocStorePostgres:
		store, err := docstore.NewPostgres(pool, cfg.Namespace, log)
		if err != nil {
			return nil, nil, fmt.Errorf("docstore.NewPostgres: %w", err)
		}
		return store, func() {}, nil

	default:
		return docstore.NewMemory(), func() {}, nil
	}
}

func newPromotionCatalog(cfg config.Config, pool *pgxpool.Pool, log *zap.Logger) (port.PromotionCatalog, error) {
	switch cfg.Catalog {
	case config.CatalogHTTP:
		return catalog.NewHTTP(cfg.CatalogURL, &http.Client{Timeout: cfg.CatalogTimeout}, log)

	case config.CatalogPostgres:
		return catalog.NewPostgres(pool, log), nil

	default:
		return nil, nil
	}
}

func newPublisher(cfg config.Config) (port.SnapshotPublisher, func(), error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp.Dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("conn.Channel: %w", err)
	}

	if err := checkout.DeclareExchange(ch, cfg.Exchange); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("checkout.DeclareExchange: %w", err)
	}

	closeFn := func() {
		_ = ch.Close()
		_ = conn.Close()
	}

	return checkout.NewAMQPPublisher(ch, cfg.Exchange), closeFn, nil
}
