package main

import (
	"os"

	"github.com/spf13/cobra"
)

var server string

var rootCmd = &cobra.Command{
	Use:          "mindctl",
	Short:        "Inspect and feed a running nuka-mind server",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&server, "server", envOr("NUKA_MIND_SERVER", "http://localhost:8080"), "nuka-mind server URL")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(conceptsCmd)
	rootCmd.AddCommand(conceptCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(activateCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(peekCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
