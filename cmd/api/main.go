package main

import (
	"fmt"
	"os"

	"gogrowth/adapters/api"
	"gogrowth/adapters/ingest"
	"gogrowth/app"
	"gogrowth/internal"
	"gogrowth/internal/config"
	"gogrowth/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	logger := internal.NewDefaultLogger()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.Server.GinMode)

	pipeline := app.NewPipeline(cfg, logger, testkit.NewRNGAdapter(cfg.Band.Seed))

	if cfg.Data.DatasetFile != "" {
		reader := ingest.NewDataReader(cfg.Data.DatasetFile)
		ds, err := reader.ReadDataset()
		if err != nil {
			fmt.Fprintln(os.Stderr, "dataset:", err)
			os.Exit(1)
		}
		n := pipeline.LoadDataset(ds)
		logger.Info("loaded %d samples from %s", n, cfg.Data.DatasetFile)
	}

	server := api.NewServer(pipeline, cfg, logger)
	if err := server.Run(":" + cfg.Server.Port); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}
