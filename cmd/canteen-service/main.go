package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/nazeru/canteen-orders-go/internal/bus"
	"github.com/nazeru/canteen-orders-go/internal/catalog"
	"github.com/nazeru/canteen-orders-go/internal/order/lifecycle"
	"github.com/nazeru/canteen-orders-go/internal/order/shortcode"
	"github.com/nazeru/canteen-orders-go/internal/order/store"
	"github.com/nazeru/canteen-orders-go/internal/relay"
	"github.com/nazeru/canteen-orders-go/internal/report"
	"github.com/nazeru/canteen-orders-go/internal/server"
	"github.com/nazeru/canteen-orders-go/pkg/kafka"
	"github.com/nazeru/canteen-orders-go/pkg/logging"
)

type cfg struct {
	Port           string
	DatabaseURL    string
	ShortCodeWidth int
	BusBuffer      int
	KafkaBrokers   string
	KafkaTopic     string
}

func readCfg() (cfg, error) {
	db := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if db == "" {
		return cfg{}, errors.New("DATABASE_URL is required")
	}
	width, _ := strconv.Atoi(getenv("SHORT_CODE_WIDTH", "4"))
	buffer, _ := strconv.Atoi(getenv("BUS_BUFFER", "16"))

	return cfg{
		Port:           getenv("PORT", "8080"),
		DatabaseURL:    db,
		ShortCodeWidth: width,
		BusBuffer:      buffer,
		KafkaBrokers:   getenv("KAFKA_BROKERS", ""),
		KafkaTopic:     getenv("KAFKA_TOPIC", "canteen.orders"),
	}, nil
}

func main() {
	logger := logging.New("canteen-service")

	cfg, err := readCfg()
	if err != nil {
		logger.WithError(err).Fatal("config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(poolCtx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("db connect error")
	}
	defer pool.Close()
	if err := pool.Ping(poolCtx); err != nil {
		logger.WithError(err).Fatal("db ping error")
	}

	eventBus := bus.NewBuffered(cfg.BusBuffer)
	defer eventBus.Close()

	orders := lifecycle.NewManager(
		store.New(pool),
		catalog.NewPGReader(pool),
		shortcode.New(cfg.ShortCodeWidth),
		eventBus,
		logger,
	)
	reports := report.NewAggregator(pool)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.New(orders, reports, eventBus, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	kafkaClient := kafka.NewClient(cfg.KafkaBrokers)
	if kafkaClient.Enabled() {
		writer := kafkaClient.NewWriter(cfg.KafkaTopic)
		defer writer.Close()
		sub := eventBus.Subscribe()
		g.Go(func() error {
			relay.New(kafkaWriter{writer: writer}, logger).Run(ctx, sub.Events())
			return nil
		})
		logger.WithField("topic", cfg.KafkaTopic).Info("kafka event relay enabled")
	}

	g.Go(func() error {
		logger.WithField("port", cfg.Port).Info("canteen-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("service error")
	}
}

// kafkaWriter adapts the shared kafka client to the relay's Writer contract.
type kafkaWriter struct {
	writer *kafkago.Writer
}

func (w kafkaWriter) Publish(ctx context.Context, key string, payload any) error {
	return kafka.PublishJSON(ctx, w.writer, key, payload)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
