package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"moments/internal/config"
	"moments/internal/report"
	"moments/internal/store"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	var (
		fromStr = flag.String("from", "", "start date (YYYY-MM-DD), default 30 days ago")
		toStr   = flag.String("to", "", "end date (YYYY-MM-DD, exclusive), default tomorrow")
		out     = flag.String("out", "", "output .xlsx path, default deliveries_<from>.xlsx")
	)
	flag.Parse()

	cfg, err := config.Load(os.Getenv("MOMENTS_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 1)
	if *fromStr != "" {
		if from, err = time.Parse("2006-01-02", *fromStr); err != nil {
			logger.Fatal().Err(err).Msg("bad -from date")
		}
	}
	if *toStr != "" {
		if to, err = time.Parse("2006-01-02", *toStr); err != nil {
			logger.Fatal().Err(err).Msg("bad -to date")
		}
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("deliveries_%s.xlsx", from.Format("2006-01-02"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := store.NewStore(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store error")
	}
	defer db.Close()

	w := report.NewExcelizeWriter()
	count, err := report.WriteDelivery(ctx, db, w, from, to)
	if err != nil {
		logger.Fatal().Err(err).Msg("report failed")
	}
	if err := w.SaveToFile(path); err != nil {
		logger.Fatal().Err(err).Msg("save report failed")
	}

	logger.Info().Int("records", count).Str("path", path).Msg("delivery report written")
}
