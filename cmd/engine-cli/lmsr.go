package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/atmx/predengine/internal/harness"
	"github.com/atmx/predengine/internal/lmsr"
)

var lmsrCmd = &cobra.Command{
	Use:   "lmsr",
	Short: "Quote and trade against the LMSR automated market maker",
}

var (
	lmsrPreset  string
	lmsrOutcome string
	lmsrQty     string
	lmsrTrader  string
)

var lmsrQuoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote the cost of buying --qty shares of --outcome",
	RunE:  runLMSRQuote,
}

var lmsrBuyCmd = &cobra.Command{
	Use:   "buy",
	Short: "Execute a buy of --qty shares of --outcome for --trader",
	RunE:  runLMSRBuy,
}

func init() {
	rootCmd.AddCommand(lmsrCmd)
	lmsrCmd.AddCommand(lmsrQuoteCmd, lmsrBuyCmd)

	lmsrCmd.PersistentFlags().StringVar(&lmsrPreset, "preset", "small-market", "named market preset")
	lmsrCmd.PersistentFlags().StringVar(&lmsrOutcome, "outcome", "YES", "YES or NO")
	lmsrCmd.PersistentFlags().StringVar(&lmsrQty, "qty", "1", "share quantity")
	lmsrBuyCmd.Flags().StringVar(&lmsrTrader, "trader", "alice", "trader id")
}

func runLMSRQuote(cmd *cobra.Command, args []string) error {
	preset, err := harness.GetPreset(lmsrPreset)
	if err != nil {
		return err
	}
	l, err := lmsr.InitLedger(preset.Liquidity, preset.Seeds)
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(lmsrQty)
	if err != nil {
		return fmt.Errorf("invalid --qty: %w", err)
	}
	quote, err := lmsr.QuoteQtyBuy(l.Market, lmsr.Outcome(lmsrOutcome), qty)
	if err != nil {
		return err
	}
	return printJSON(quote)
}

func runLMSRBuy(cmd *cobra.Command, args []string) error {
	preset, err := harness.GetPreset(lmsrPreset)
	if err != nil {
		return err
	}
	l, err := lmsr.InitLedger(preset.Liquidity, preset.Seeds)
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(lmsrQty)
	if err != nil {
		return fmt.Errorf("invalid --qty: %w", err)
	}
	res, err := lmsr.ExecuteBuy(l, lmsrTrader, lmsr.Outcome(lmsrOutcome), qty)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
