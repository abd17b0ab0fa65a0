package cli

import (
	"farmlink/internal/database"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logg, db, err := bootstrap()
		if err != nil {
			return err
		}
		if err := database.AutoMigrate(db); err != nil {
			return err
		}
		logg.Info("migration complete")
		return nil
	},
}
