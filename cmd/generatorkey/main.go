package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"adstudio/internal/infra"
	"adstudio/internal/infra/credentials"
)

func main() {
	var (
		keyFlag     string
		baseURLFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "API key for the image generator (falls back to GENERATOR_API_KEY)")
	flag.StringVar(&baseURLFlag, "base-url", "", "generator endpoint the key belongs to (falls back to GENERATOR_URL)")
	flag.Parse()

	_ = godotenv.Load()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GENERATOR_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "generator API key is required via -key or GENERATOR_API_KEY")
		os.Exit(1)
	}
	baseURL := strings.TrimSpace(baseURLFlag)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("GENERATOR_URL"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLoggerTo(os.Stderr, "cli").With().Str("cmd", "generatorkey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	if err := store.SetGeneratorAPIKey(ctx, key, baseURL); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist generator api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("generator API key stored successfully")
}
