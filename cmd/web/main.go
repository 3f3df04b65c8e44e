package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"ipedspulse/internal/app"
	apierrors "ipedspulse/internal/errors"
	"ipedspulse/internal/infrastructure"
)

func main() {
	ctx := context.Background()

	// Create application instance
	application, err := app.NewApplication(ctx, nil, nil)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		// configuration errors exit 2
		if apierrors.IsType(err, apierrors.ErrTypeConfig) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	// Start application
	if err := application.Run(ctx); err != nil {
		application.Logger.Error("Application error", slog.String("error", err.Error()))
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
}
