package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecmcloud/ecm/internal/database"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending master registry migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := database.Open(cmd.Context(), e.cfg.MasterDatabase)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "master registry migrated (%s)\n", db.Dialect())
			return nil
		},
	}
}
