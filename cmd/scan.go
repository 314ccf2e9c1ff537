package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/extractor"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/ingest"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Index all photos in a directory",
	Long: `Walk a directory recursively, extract face embeddings from every
supported image (jpg, jpeg, png, webp), and store them in the configured
backend. Files that fail to read or decode are skipped and reported; one
bad file never aborts the scan.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("org", "", "Organization ID to index photos under")
	scanCmd.Flags().String("mode", "all", "Face extraction mode: all or largest")
	scanCmd.Flags().Bool("json", false, "Output summary as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a readable directory", dir)
	}

	orgID := mustGetString(cmd, "org")
	jsonOutput := mustGetBool(cmd, "json")
	mode := extractor.AllFaces
	if mustGetString(cmd, "mode") == "largest" {
		mode = extractor.LargestOnly
	}

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	var storage ingest.StorageSink
	if b.pool != nil && orgID != "" {
		storage = postgres.NewOrgRepository(b.pool)
	}

	coordinator := ingest.NewCoordinator(newExtractorClient(cfg), b.store, storage, b.usage, logger)

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		coordinator.Progress = func(path string, processed, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Indexing photos"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			bar.Add(1)
		}
	}

	summary, err := coordinator.ScanDirectory(cmd.Context(), orgID, dir, mode)
	if err != nil {
		return err
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(summary)
	}

	fmt.Printf("\n\nScan complete:\n")
	fmt.Printf("  Processed: %d photos\n", summary.Processed)
	fmt.Printf("  Faces:     %d found, %d stored\n", summary.FacesFound, summary.Inserted)
	fmt.Printf("  Skipped:   %d files\n", summary.Skipped)
	fmt.Printf("  Bytes:     %d\n", summary.Bytes)
	for _, e := range summary.Errors {
		fmt.Printf("  skipped: %s\n", e)
	}
	return nil
}
