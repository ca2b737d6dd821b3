package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("newsagent %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)

	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Model: %s\n", cfg.ModelName)
	fmt.Printf("  Planner: %s\n", cfg.PlannerModel)
	fmt.Printf("  Embedder: %s (%d dims)\n", cfg.EmbedderModel, cfg.EmbeddingDim)
	fmt.Printf("  Index backend: %s\n", cfg.IndexBackend)
	fmt.Printf("  Request queue: %s\n", cfg.RequestQueue)
	return nil
}
