package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	holdingsapp "github.com/wqellis/brickvest/internal/holdings/application"
	holdingsdomain "github.com/wqellis/brickvest/internal/holdings/domain"
	holdingsmysql "github.com/wqellis/brickvest/internal/holdings/infrastructure/persistence/mysql"
	inventoryapp "github.com/wqellis/brickvest/internal/inventory/application"
	inventorydomain "github.com/wqellis/brickvest/internal/inventory/domain"
	inventorymysql "github.com/wqellis/brickvest/internal/inventory/infrastructure/persistence/mysql"
	journalapp "github.com/wqellis/brickvest/internal/journal/application"
	journaldomain "github.com/wqellis/brickvest/internal/journal/domain"
	journalmysql "github.com/wqellis/brickvest/internal/journal/infrastructure/persistence/mysql"
	orderapp "github.com/wqellis/brickvest/internal/order/application"
	orderdomain "github.com/wqellis/brickvest/internal/order/domain"
	"github.com/wqellis/brickvest/internal/order/infrastructure/messaging"
	"github.com/wqellis/brickvest/internal/order/infrastructure/payment"
	ordermysql "github.com/wqellis/brickvest/internal/order/infrastructure/persistence/mysql"
	orderhttp "github.com/wqellis/brickvest/internal/order/interfaces/http"
	"github.com/wqellis/brickvest/pkg/config"
	"github.com/wqellis/brickvest/pkg/db"
	"github.com/wqellis/brickvest/pkg/idgen"
	"github.com/wqellis/brickvest/pkg/logger"
	"github.com/wqellis/brickvest/pkg/metrics"
	"github.com/wqellis/brickvest/pkg/middleware"
	"github.com/wqellis/brickvest/pkg/mq"
)

var configPath = flag.String("config", "configs/engine/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 3. IDs
	if err := idgen.Init(cfg.IDGen.NodeID); err != nil {
		slog.Error("failed to init id generator", "error", err)
		os.Exit(1)
	}

	// 4. Metrics
	m := metrics.New("engine")
	if cfg.Metrics.Enabled {
		go func() {
			if err := m.ExposeHTTP(cfg.Metrics.Port); err != nil {
				slog.Error("metrics server exited", "error", err)
			}
		}()
	}

	// 5. Database
	database, err := db.Init(cfg.Database)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(
			&inventorydomain.Listing{},
			&inventorydomain.Reservation{},
			&journaldomain.Entry{},
			&holdingsdomain.Holding{},
			&orderdomain.Order{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 6. Repositories
	listingRepo := inventorymysql.NewListingRepository(database.DB)
	reservationRepo := inventorymysql.NewReservationRepository(database.DB)
	entryRepo := journalmysql.NewEntryRepository(database.DB)
	holdingRepo := holdingsmysql.NewHoldingRepository(database.DB)
	orderRepo := ordermysql.NewOrderRepository(database.DB)

	// 7. Collaborators
	gateway := payment.NewHTTPGateway(payment.Config{
		BaseURL:    cfg.Payment.BaseURL,
		APIKey:     cfg.Payment.APIKey,
		Timeout:    time.Duration(cfg.Payment.TimeoutSec) * time.Second,
		MaxRetries: cfg.Payment.MaxRetries,
	})

	var publisher orderdomain.EventPublisher = messaging.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			slog.Error("failed to create kafka producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = messaging.NewKafkaPublisher(producer, cfg.Kafka.Topic)
	}

	// 8. Application services
	reservationTTL := time.Duration(cfg.Inventory.ReservationTTLSec) * time.Second
	inventoryService := inventoryapp.NewInventoryService(listingRepo, reservationRepo, database, reservationTTL)
	inventoryService.SetMetrics(m)
	journalService := journalapp.NewJournalService(entryRepo)
	journalService.SetMetrics(m)
	holdingsService := holdingsapp.NewHoldingsService(holdingRepo)
	orderService := orderapp.NewOrderService(
		orderRepo, inventoryService, journalService, holdingsService,
		gateway, publisher, database, m,
	)

	// 9. HTTP
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.Metrics(m),
	)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	handler := orderhttp.NewHandler(orderService, holdingsService, journalService, inventoryService)
	handler.RegisterRoutes(r.Group("/api"))

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 10. Run
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		slog.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// Reservation expiry sweep: the operational job that resolves holds
	// orphaned by a crash between reservation and settlement.
	g.Go(func() error {
		interval := time.Duration(cfg.Inventory.SweepIntervalSec) * time.Second
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				released, err := inventoryService.ReleaseExpired(ctx, 100)
				if err != nil {
					slog.Error("reservation sweep failed", "error", err)
					continue
				}
				if released > 0 {
					m.ReservationsExpiredTotal.Add(float64(released))
					slog.Info("reservation sweep released holds", "count", released)
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down server...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
