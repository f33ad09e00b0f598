package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Manage resource signing seeds",
	Long: `Manage the signing seeds from which each space and event derives the
identity used to sign its graph store writes.

Requires DATABASE_URL and MEMBERSHIP_DATA_KEY.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("error: Command 'seed' requires a subcommand (generate, show)")
		fmt.Println()
		_ = cmd.Help()
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
