package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "trader",
	Short: "Directional trading engine with risk-governed execution",
	Long: `trader evaluates trend signals on a schedule, validates them against an
account-level risk policy, sizes positions off a fixed risk fraction, and
submits orders with fill-mode negotiation and trailing-stop maintenance.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "environment file with venue credentials")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

// loadEnv loads credentials from the env file, falling back to the process
// environment.
func loadEnv() {
	if err := godotenv.Load(envFile); err != nil {
		fmt.Printf("⚠️  Could not load %s (%v), using process environment\n", envFile, err)
	}
}
