package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-engine/internal/config"
	"github.com/kozaktomas/face-engine/internal/database"
	"github.com/kozaktomas/face-engine/internal/database/postgres"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Queue a photo directory for face detection",
	Long: `Walk a directory tree and enqueue every image file for face detection.
Photos already queued keep their progress; re-scanning is always safe.

Examples:
  # Queue all photos under ~/Pictures
  face-engine scan ~/Pictures

  # Queue for a specific tenant
  FACE_TENANT=alice face-engine scan /mnt/photos`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// imageExtensions are the file types the detection service accepts.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".heic": true,
	".webp": true,
	".tiff": true,
	".bmp":  true,
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving directory: %w", err)
	}

	fmt.Printf("Scanning %s...\n", root)
	var items []database.BacklogItem
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		items = append(items, database.BacklogItem{
			PhotoUID: filepath.ToSlash(rel),
			Path:     path,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", root, err)
	}

	if len(items) == 0 {
		fmt.Println("No image files found.")
		return nil
	}
	fmt.Printf("Found %d image files\n", len(items))

	pool, err := connectDatabase(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	backlog := postgres.NewBacklogRepository(pool)

	bar := progressbar.NewOptions(len(items),
		progressbar.OptionSetDescription("Queueing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
	)

	// enqueue in chunks so the progress bar means something on big trees
	const chunk = 500
	for start := 0; start < len(items); start += chunk {
		end := start + chunk
		if end > len(items) {
			end = len(items)
		}
		if err := backlog.Enqueue(ctx, cfg.Tenant, items[start:end]); err != nil {
			return fmt.Errorf("enqueueing photos: %w", err)
		}
		bar.Add(end - start)
	}
	fmt.Println()

	attempted, total, err := backlog.Counts(ctx, cfg.Tenant)
	if err != nil {
		return fmt.Errorf("counting backlog: %w", err)
	}
	fmt.Printf("Backlog for %s: %d photos queued, %d already processed\n", cfg.Tenant, total-attempted, attempted)
	fmt.Println("Run 'face-engine detect' to start detection.")
	return nil
}
