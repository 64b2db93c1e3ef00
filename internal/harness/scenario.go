package harness

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/clob"
	"github.com/atmx/predengine/internal/ledger"
	"github.com/atmx/predengine/internal/lmsr"
)

// OpKind names one step of a replayable scenario.
type OpKind string

const (
	OpLMSRBuy        OpKind = "LMSR_BUY"
	OpLMSRBuySpend   OpKind = "LMSR_BUY_SPEND"
	OpLMSRSettle     OpKind = "LMSR_SETTLE"
	OpCLOBPlaceLimit OpKind = "CLOB_PLACE_LIMIT"
	OpCLOBPlaceMkt   OpKind = "CLOB_PLACE_MARKET"
	OpCLOBCancel     OpKind = "CLOB_CANCEL"
	OpCLOBSettle     OpKind = "CLOB_SETTLE"
)

// Op is one step in a deterministic scenario, the shape S1–S7 in
// spec.md §8 are described in. TraderID/Outcome/Side/OrderID are used by
// whichever op kind needs them; Qty/Price/Spend likewise.
type Op struct {
	Kind     OpKind          `validate:"required"`
	TraderID string          `validate:"omitempty"`
	Outcome  string          `validate:"omitempty,oneof=YES NO"`
	Side     string          `validate:"omitempty,oneof=BUY SELL"`
	OrderID  string          `validate:"omitempty"`
	Qty      decimal.Decimal `validate:"omitempty"`
	Price    decimal.Decimal `validate:"omitempty"`
	Spend    decimal.Decimal `validate:"omitempty"`
}

// ScenarioResult is the outcome of ReplayLMSRScenario or
// ReplayCLOBScenario: the event trail plus whatever the final op
// returned.
type ScenarioResult struct {
	Records    []audit.Record
	LastResult any
}

// ReplayLMSRScenario runs a sequence of LMSR ops against a fresh ledger
// built from preset, logging every state-changing call to log (which may
// be nil). Stops and returns an error on the first structural failure;
// policy failures (e.g. insufficient cash) are also surfaced as errors,
// since the LMSR engine has no REJECTED status.
func ReplayLMSRScenario(preset Preset, ops []Op, log *audit.Log) (*ScenarioResult, error) {
	l, err := lmsr.InitLedger(preset.Liquidity, preset.Seeds)
	if err != nil {
		return nil, fmt.Errorf("harness: init lmsr ledger: %w", err)
	}

	result := &ScenarioResult{}
	for i, op := range ops {
		outcome := lmsr.Outcome(op.Outcome)
		switch op.Kind {
		case OpLMSRBuy:
			res, err := lmsr.ExecuteBuy(l, op.TraderID, outcome, op.Qty)
			if err != nil {
				return result, fmt.Errorf("harness: op %d (%s): %w", i, op.Kind, err)
			}
			log.Record(audit.Trade, res)
			result.LastResult = res
		case OpLMSRBuySpend:
			res, err := lmsr.ExecuteBuySpend(l, op.TraderID, outcome, op.Spend)
			if err != nil {
				return result, fmt.Errorf("harness: op %d (%s): %w", i, op.Kind, err)
			}
			log.Record(audit.Trade, res)
			result.LastResult = res
		case OpLMSRSettle:
			res, err := lmsr.Settle(l, outcome)
			if err != nil {
				return result, fmt.Errorf("harness: op %d (%s): %w", i, op.Kind, err)
			}
			log.Record(audit.MarketData, res)
			result.LastResult = res
		default:
			return result, fmt.Errorf("harness: op %d: unsupported LMSR op kind %q", i, op.Kind)
		}
	}
	result.Records = log.GetLogs()
	return result, nil
}

// recordBookSnapshotIfChanged logs a BookSnapshot event only when the
// top of book actually moved, matching internal/api's behavior so a
// scenario replay's audit trail looks like a live run's would.
func recordBookSnapshotIfChanged(log *audit.Log, before, after clob.TopOfBook) {
	if before.BestBid.Equal(after.BestBid) && before.BestAsk.Equal(after.BestAsk) {
		return
	}
	log.Record(audit.BookSnapshot, after)
}

// ReplayCLOBScenario runs a sequence of CLOB ops against a fresh ledger
// seeded from seeds, logging every state-changing call to log (which may
// be nil).
func ReplayCLOBScenario(seeds []ledger.Seed, ops []Op, log *audit.Log) (*ScenarioResult, error) {
	l, err := clob.InitLedger(seeds)
	if err != nil {
		return nil, fmt.Errorf("harness: init clob ledger: %w", err)
	}

	result := &ScenarioResult{}
	for i, op := range ops {
		before := clob.GetTopOfBook(l.Book)
		switch op.Kind {
		case OpCLOBPlaceLimit:
			res, err := clob.PlaceLimitOrder(l, op.TraderID, clob.Side(op.Side), op.Price, op.Qty)
			if err != nil {
				return result, fmt.Errorf("harness: op %d (%s): %w", i, op.Kind, err)
			}
			if res.Status == clob.StatusRejected {
				log.Record(audit.OrderPlaced, res)
			} else {
				log.Record(audit.OrderPlaced, res)
				for _, tr := range res.Trades {
					log.Record(audit.Trade, tr)
				}
			}
			result.LastResult = res
			recordBookSnapshotIfChanged(log, before, clob.GetTopOfBook(l.Book))
		case OpCLOBPlaceMkt:
			res, err := clob.PlaceMarketOrder(l, op.TraderID, clob.Side(op.Side), op.Qty)
			if err != nil {
				return result, fmt.Errorf("harness: op %d (%s): %w", i, op.Kind, err)
			}
			log.Record(audit.OrderPlaced, res)
			for _, tr := range res.Trades {
				log.Record(audit.Trade, tr)
			}
			result.LastResult = res
			recordBookSnapshotIfChanged(log, before, clob.GetTopOfBook(l.Book))
		case OpCLOBCancel:
			res, err := clob.CancelOrder(l, op.OrderID)
			if err != nil {
				return result, fmt.Errorf("harness: op %d (%s): %w", i, op.Kind, err)
			}
			log.Record(audit.OrderCancelled, res)
			result.LastResult = res
			recordBookSnapshotIfChanged(log, before, clob.GetTopOfBook(l.Book))
		case OpCLOBSettle:
			res, err := clob.Settle(l, clob.Outcome(op.Outcome))
			if err != nil {
				return result, fmt.Errorf("harness: op %d (%s): %w", i, op.Kind, err)
			}
			log.Record(audit.MarketData, res)
			result.LastResult = res
		default:
			return result, fmt.Errorf("harness: op %d: unsupported CLOB op kind %q", i, op.Kind)
		}
	}
	result.Records = log.GetLogs()
	return result, nil
}
