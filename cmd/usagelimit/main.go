package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/sqlinline"
)

func main() {
	var (
		idFlag        string
		emailFlag     string
		categoryFlag  string
		limitFlag     int
		keepUsageFlag bool
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&categoryFlag, "category", domain.UsageCategoryStaticAds, "usage category to configure")
	flag.IntVar(&limitFlag, "limit", 20, "usage limit to enforce (set <=0 for unbounded)")
	flag.BoolVar(&keepUsageFlag, "keep-usage", false, "preserve current usage instead of resetting to 0")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	category := strings.TrimSpace(strings.ToLower(categoryFlag))

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	if category == "" {
		exitWithError(errors.New("-category is required"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLoggerTo(os.Stderr, "cli").With().Str("cmd", "usagelimit").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	var user struct {
		ID    string
		Email string
	}
	var scanErr error
	if userID != "" {
		scanErr = runner.QueryRow(ctx, sqlinline.QSelectUserByID, userID).Scan(&user.ID, &user.Email)
	} else {
		scanErr = runner.QueryRow(ctx, sqlinline.QSelectUserByEmail, email).Scan(&user.ID, &user.Email)
	}
	if scanErr != nil {
		if infra.IsNoRows(scanErr) {
			exitWithError(errors.New("user not found"))
		}
		exitWithError(fmt.Errorf("failed to load user: %w", scanErr))
	}

	var limit *int
	if limitFlag > 0 {
		limit = &limitFlag
	}

	var (
		currentUsage int
		storedLimit  *int
	)
	row := runner.QueryRow(ctx, sqlinline.QSetUsageLimit, user.ID, category, limit, keepUsageFlag)
	if err := row.Scan(&currentUsage, &storedLimit); err != nil {
		exitWithError(fmt.Errorf("failed to update usage limit: %w", err))
	}

	fmt.Printf("User %s (%s) %s usage updated\n", user.ID, user.Email, category)
	fmt.Printf("current_usage=%d\n", currentUsage)
	if storedLimit == nil {
		fmt.Println("limit=unbounded")
	} else {
		fmt.Printf("limit=%d\n", *storedLimit)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
