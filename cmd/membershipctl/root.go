package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "membershipctl",
	Short: "Run and administer the membership gateway",
	Long: `Run and administer the membership gateway.

The gateway enforces role-based access control for spaces and events and
performs every graph store write under the signing identity of the resource
being changed.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
