package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/yusufdiallo1/Rizq-Trackr-sub001/internal/pricing"
)

var (
	simulateMetal string
	simulateOld   string
	simulateNew   string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay an old/new price pair through the alert policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		oldPrice, err := decimal.NewFromString(simulateOld)
		if err != nil {
			return fmt.Errorf("parse --old: %w", err)
		}
		newPrice, err := decimal.NewFromString(simulateNew)
		if err != nil {
			return fmt.Errorf("parse --new: %w", err)
		}

		return getApp().SimulateAlert(cmd.Context(), pricing.Metal(simulateMetal), oldPrice, newPrice)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateMetal, "metal", "gold", "Metal to simulate (gold or silver)")
	simulateCmd.Flags().StringVar(&simulateOld, "old", "", "Previous price per gram")
	simulateCmd.Flags().StringVar(&simulateNew, "new", "", "New price per gram")
	_ = simulateCmd.MarkFlagRequired("old")
	_ = simulateCmd.MarkFlagRequired("new")
}
