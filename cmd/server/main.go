package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/rowql/internal/catalog"
	"github.com/rpattn/rowql/internal/config"
	"github.com/rpattn/rowql/internal/db"
	"github.com/rpattn/rowql/internal/export"
	"github.com/rpattn/rowql/internal/httpapi"
	"github.com/rpattn/rowql/internal/ingestion"
	"github.com/rpattn/rowql/internal/repository"
	"github.com/rpattn/rowql/internal/search"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var stores catalog.Stores
	var properties repository.PropertyRepository
	var entities repository.EntityRepository

	if cfg.Database.Enabled {
		if err := db.RunMigrations(cfg.Database.Config); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		conn, err := db.NewConnection(ctx, cfg.Database.Config)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer conn.Close()

		entityRepo := repository.NewEntityRepository(conn.Pool)
		entities, properties = entityRepo, entityRepo
		stores = catalog.Stores{
			Tenants:  repository.NewTenantRepository(conn.Pool),
			Entities: entityRepo,
			Rows:     repository.NewRowRepository(conn.Pool),
		}
		log.Printf("[DB] connected to %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	} else {
		store := repository.NewMemoryStore()
		entities, properties = store.Entities(), store.Properties()
		stores = catalog.Stores{Tenants: store.Tenants(), Entities: store.Entities(), Rows: store.Rows()}
		log.Println("[DB] database disabled, using in-memory store")
	}

	if cfg.Seed.Path != "" {
		c, err := catalog.LoadFile(cfg.Seed.Path)
		if err != nil {
			log.Fatalf("Failed to load seed catalog: %v", err)
		}
		if err := c.Apply(ctx, stores); err != nil {
			log.Fatalf("Failed to seed catalog: %v", err)
		}
	}

	searchService := search.NewService(entities, properties, stores.Rows)
	router := httpapi.NewRouter(httpapi.Deps{
		Search:         searchService,
		Export:         export.NewService(searchService),
		Ingestion:      ingestion.NewService(searchService, stores.Rows),
		Properties:     properties,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting rowql server on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
