package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show face store statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().Bool("json", false, "Output stats as JSON")
	statsCmd.Flags().Bool("platform", false, "Include platform-wide tenant aggregates (postgres only)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	stats, err := b.store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := map[string]any{"store": stats, "backend": cfg.Store.Backend}

	if mustGetBool(cmd, "platform") {
		if b.pool == nil {
			return fmt.Errorf("--platform requires the postgres backend")
		}
		platform, err := postgres.NewOrgRepository(b.pool).GetPlatformStats(cmd.Context())
		if err != nil {
			return err
		}
		out["platform"] = platform
	}

	if mustGetBool(cmd, "json") {
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Printf("Backend:     %s\n", cfg.Store.Backend)
	fmt.Printf("Total faces: %d\n", stats.TotalFaces)
	fmt.Printf("Table ready: %v\n", stats.TableExists)
	if platform, ok := out["platform"].(*postgres.PlatformStats); ok {
		fmt.Printf("Tenants:     %d\n", platform.TotalOrgs)
		fmt.Printf("Users:       %d\n", platform.TotalUsers)
		fmt.Printf("Photos:      %d\n", platform.TotalPhotos)
		fmt.Printf("Storage:     %d bytes\n", platform.TotalStorage)
	}
	return nil
}
