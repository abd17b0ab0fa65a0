// Package cli holds the farmlink command tree.
package cli

import (
	"fmt"

	"farmlink/config"
	"farmlink/internal/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "farmlink",
	Short: "Farm-to-table referral attribution and reward ledger",
	Long: `farmlink issues referral codes, attributes signups to referrers and keeps
the referral reward ledger: farmer cashback, consumer free deliveries and
their redemption against orders.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file (default $FARMLINK_CONFIG)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap() (*config.Config, *logrus.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logg := config.NewLogger(cfg.Log)
	db, err := database.NewDB(&cfg.Database, logg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("database: %w", err)
	}
	return cfg, logg, db, nil
}
