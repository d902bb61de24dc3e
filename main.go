package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"exchange-core/internal/api"
	"exchange-core/internal/connector"
	"exchange-core/internal/events"
	"exchange-core/internal/strategy"
	"exchange-core/pkg/config"
	"exchange-core/pkg/crypto"
	"exchange-core/pkg/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting exchange-core on port %s", cfg.Port)

	providers, err := config.LoadProviders(cfg.ProvidersPath)
	if err != nil {
		log.Fatalf("provider config failed: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("database migrations failed: %v", err)
	}

	var vault *crypto.Vault
	if cfg.EncryptionKey != "" {
		vault, err = crypto.NewVault(cfg.EncryptionKey)
		if err != nil {
			log.Fatalf("encryption key invalid: %v", err)
		}
	} else {
		// Generate an ephemeral key so development setups still encrypt at
		// rest; stored accounts will not survive a restart without a
		// persistent ENCRYPTION_KEY.
		key, err := crypto.GenerateKey()
		if err != nil {
			log.Fatalf("generate encryption key: %v", err)
		}
		vault, err = crypto.NewVault(key)
		if err != nil {
			log.Fatalf("encryption init failed: %v", err)
		}
		log.Println("WARNING: ENCRYPTION_KEY not set, using ephemeral key")
	}

	bus := events.NewBus()
	registry := connector.NewRegistry(database, vault, cfg, providers, bus)
	runner := strategy.NewRunner(database, registry, bus)

	server := api.NewServer(bus, database, registry, runner, vault, cfg)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
