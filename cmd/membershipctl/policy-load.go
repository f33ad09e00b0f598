package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/doodlesbykumbi/membership-gateway/pkg/db"
	"github.com/doodlesbykumbi/membership-gateway/pkg/policy"
)

// policyLoadCmd represents the policy load command
var policyLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load a role catalog file",
	Long: `Load a YAML role catalog into the database.

Roles and grants are upserted by id; rows not named in the file are left
alone. With --dry-run the file is parsed and its permission names are
checked against the catalog, but nothing is written.

Example:
  membershipctl policy load roles.yml
  membershipctl policy load --dry-run roles.yml`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		file, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open policy file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()

		database, err := db.Connect(db.Config{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		loader := policy.NewLoader(policy.NewGormStore(database)).WithDryRun(dryRun)
		if err := loadPolicy(cmd.Context(), cmd.OutOrStdout(), loader, file); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load policy: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	policyLoadCmd.Flags().Bool("dry-run", false, "Validate the file without writing")
	policyCmd.AddCommand(policyLoadCmd)
}

func loadPolicy(ctx context.Context, w io.Writer, loader *policy.Loader, r io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := loader.LoadFromReader(ctx, r)
	if err != nil {
		return err
	}
	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
