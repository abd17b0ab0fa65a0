package cli

import (
	"encoding/json"
	"fmt"

	"farmlink/internal/repository"
	"farmlink/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cashbackCmd)
	rootCmd.AddCommand(statsCmd)
}

var cashbackCmd = &cobra.Command{
	Use:   "cashback FARMER_ID",
	Short: "Settle a referred farmer's first sale",
	Long: `Credit the farmer referral cashback for FARMER_ID and, when the referrer is a
farmer too, the referrer's share. Repeating the command pays nothing: a settled
referral reports already completed.`,
	Args: cobra.ExactArgs(1),
	RunE: runCashback,
}

var statsCmd = &cobra.Command{
	Use:   "stats USER_ID",
	Short: "Print a user's referral stats as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func newReferralService() (*service.ReferralService, error) {
	cfg, logg, db, err := bootstrap()
	if err != nil {
		return nil, err
	}
	return service.NewReferralService(db,
		repository.NewReferralRepository(db),
		repository.NewUserRepository(db),
		repository.NewOrderRepository(db),
		cfg.Referral, logg), nil
}

func runCashback(cmd *cobra.Command, args []string) error {
	farmerID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid farmer id %q: %w", args[0], err)
	}
	svc, err := newReferralService()
	if err != nil {
		return err
	}
	res, err := svc.ApplyFarmerReferralCashback(cmd.Context(), farmerID)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runStats(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", args[0], err)
	}
	svc, err := newReferralService()
	if err != nil {
		return err
	}
	stats, err := svc.GetReferralStats(cmd.Context(), userID)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
