package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/cluster"
	"github.com/kozaktomas/face-engine/internal/config"
	"github.com/kozaktomas/face-engine/internal/database/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "face-engine",
	Short: "Face detection and identity clustering for photo libraries",
	Long: `Face Engine detects faces in a photo library, stores their embeddings
in PostgreSQL, and groups them into named people. Detection runs in
disposable worker processes so a hung photo can never wedge the whole
pipeline; clustering is recomputed from stored faces on demand.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// connectDatabase opens the pool and brings the schema up to date.
func connectDatabase(cfg *config.Config) (*postgres.Pool, error) {
	pool, err := postgres.Connect(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return pool, nil
}

// buildEngine wires the clustering engine onto its repositories.
func buildEngine(pool *postgres.Pool, cfg *config.Config) *cluster.Engine {
	return cluster.NewEngine(
		postgres.NewFaceRepository(pool),
		postgres.NewLabelRepository(pool),
		postgres.NewExclusionRepository(pool),
		postgres.NewSnapshotRepository(pool),
		cfg.Thresholds,
	)
}
