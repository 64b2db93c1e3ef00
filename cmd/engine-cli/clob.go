package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/atmx/predengine/internal/clob"
	"github.com/atmx/predengine/internal/harness"
)

var clobCmd = &cobra.Command{
	Use:   "clob",
	Short: "Place orders and inspect the CLOB matching engine's book",
}

var (
	clobPreset string
	clobTrader string
	clobSide   string
	clobPrice  string
	clobQty    string
	clobMarket bool
)

var clobPlaceCmd = &cobra.Command{
	Use:   "place",
	Short: "Place a limit (or, with --market, a market) order",
	RunE:  runCLOBPlace,
}

var clobBookCmd = &cobra.Command{
	Use:   "book",
	Short: "Print the best bid/ask of a fresh book over the preset's traders (empty sides print 0)",
	RunE:  runCLOBBook,
}

func init() {
	rootCmd.AddCommand(clobCmd)
	clobCmd.AddCommand(clobPlaceCmd, clobBookCmd)

	clobCmd.PersistentFlags().StringVar(&clobPreset, "preset", "small-market", "named market preset (seeds traders only)")
	clobPlaceCmd.Flags().StringVar(&clobTrader, "trader", "alice", "trader id")
	clobPlaceCmd.Flags().StringVar(&clobSide, "side", "BUY", "BUY or SELL")
	clobPlaceCmd.Flags().StringVar(&clobPrice, "price", "0.5", "limit price (ignored with --market)")
	clobPlaceCmd.Flags().StringVar(&clobQty, "qty", "1", "order quantity")
	clobPlaceCmd.Flags().BoolVar(&clobMarket, "market", false, "place a market order instead of a limit order")
}

func runCLOBPlace(cmd *cobra.Command, args []string) error {
	preset, err := harness.GetPreset(clobPreset)
	if err != nil {
		return err
	}
	l, err := clob.InitLedger(preset.Seeds)
	if err != nil {
		return err
	}
	qty, err := decimal.NewFromString(clobQty)
	if err != nil {
		return fmt.Errorf("invalid --qty: %w", err)
	}

	var res *clob.OrderResult
	if clobMarket {
		res, err = clob.PlaceMarketOrder(l, clobTrader, clob.Side(clobSide), qty)
	} else {
		price, perr := decimal.NewFromString(clobPrice)
		if perr != nil {
			return fmt.Errorf("invalid --price: %w", perr)
		}
		res, err = clob.PlaceLimitOrder(l, clobTrader, clob.Side(clobSide), price, qty)
	}
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runCLOBBook(cmd *cobra.Command, args []string) error {
	preset, err := harness.GetPreset(clobPreset)
	if err != nil {
		return err
	}
	l, err := clob.InitLedger(preset.Seeds)
	if err != nil {
		return err
	}
	bestBid, _ := clob.BestBid(l.Book)
	bestAsk, _ := clob.BestAsk(l.Book)
	return printJSON(map[string]decimal.Decimal{"best_bid": bestBid, "best_ask": bestAsk})
}
