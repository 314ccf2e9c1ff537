package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/LeulTew/aura/internal/config"
	"github.com/LeulTew/aura/internal/facestore/postgres"
	"github.com/LeulTew/aura/internal/match"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match [user-id]",
	Short: "Match a user's photos by their reference embedding",
	Long: `Find all stored photos showing the given user and persist the links.
Requires the PostgreSQL backend and an enrolled reference embedding.
Re-running refreshes similarities instead of duplicating links.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("org", "", "Organization ID to match within (required)")
	matchCmd.Flags().Float64("threshold", 0, "Similarity threshold override (default from MATCH_THRESHOLD)")
	matchCmd.Flags().Bool("json", false, "Output results as JSON")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger()

	userID := args[0]
	orgID := mustGetString(cmd, "org")
	if orgID == "" {
		return errors.New("--org is required")
	}

	b, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	if b.pool == nil {
		return errors.New("match requires the postgres backend")
	}

	threshold := cfg.Match.Threshold
	if v := mustGetFloat64(cmd, "threshold"); v > 0 && v <= 1 {
		threshold = v
	}

	engine := match.NewEngine(
		postgres.NewProfileRepository(b.pool),
		b.store,
		postgres.NewMatchRepository(b.pool),
		b.usage,
		match.WithThreshold(threshold),
	)

	result, err := engine.MatchIdentity(cmd.Context(), orgID, userID)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return json.NewEncoder(os.Stdout).Encode(result)
	}

	fmt.Printf("Matched %d photos for user %s (threshold %.2f):\n", len(result.Matches), userID, result.Threshold)
	for _, m := range result.Matches {
		fmt.Printf("  %.4f  %s\n", m.Similarity, m.Record.SourcePath)
	}
	return nil
}
