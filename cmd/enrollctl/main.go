package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enrollctl",
	Short: "Operator tooling for the enrollment API",
	Long: `Operator tooling for the enrollment API.

Available subcommands:
  migrate      - Apply pending database migrations
  create-staff - Seed a staff account
  purge-codes  - Delete expired password reset codes`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd, createStaffCmd, purgeCodesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
