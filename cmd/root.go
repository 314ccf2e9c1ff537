package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aura",
	Short: "Face recognition photo retrieval backend",
	Long: `Aura indexes event photos by the faces they contain and lets people
find the photos they appear in from a single selfie. It supports a
PostgreSQL/pgvector backend for multi-tenant deployments and an embedded
index for single-machine use.`,
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
