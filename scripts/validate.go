package main

import (
	"flag"
	"log/slog"
	"os"

	"medstay/internal/validation"
)

func main() {
	var baseURL, token string
	var propertyID int64
	flag.StringVar(&baseURL, "url", "http://localhost:8081", "Base URL for API validation")
	flag.Int64Var(&propertyID, "property", 1, "Property ID used for the smoke booking")
	flag.StringVar(&token, "token", "", "Bearer token (empty uses the X-Guest-ID development header)")
	flag.Parse()

	slog.Info("Starting API validation", "url", baseURL)

	var opts []validation.Option
	if token != "" {
		opts = append(opts, validation.WithToken(token))
	}

	if err := validation.NewSmokeValidator(baseURL, propertyID, opts...).ValidateAll(); err != nil {
		slog.Error("Validation failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Validation passed")
}
