package main

import (
	"context"
	"log"

	"neuroheart-chat-be/internal/bootstrap"
	"neuroheart-chat-be/internal/config"
	"neuroheart-chat-be/internal/server"
	"neuroheart-chat-be/internal/tracer"
	"neuroheart-chat-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Summarize Consumer...")
		if err := container.SummarizeConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Summarize Consumer Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
