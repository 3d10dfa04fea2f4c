package main

import (
	"log"

	"momoinvoice/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	if err := logger.Setup(logger.DefaultConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	Execute()
}
