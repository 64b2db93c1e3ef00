// Package lmsr implements the Logarithmic Market Scoring Rule (LMSR)
// automated market maker for binary prediction markets.
//
// The LMSR was proposed by Robin Hanson and provides:
//   - Bounded loss for the market maker (capped at b * ln 2 for binary
//     markets)
//   - Continuous pricing with infinite liquidity
//   - Path-independent cost function
//
// All monetary values use shopspring/decimal — never float64 for money.
// Internal transcendental math uses the log-sum-exp trick for numerical
// stability (see internal/decimalmath), computed in decimal end to end so
// repeated trades stay bit-for-bit reproducible.
//
// Reference: Hanson, R. (2003) "Combinatorial Information Market Design"
package lmsr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/predengine/internal/decimalmath"
	"github.com/atmx/predengine/internal/ledger"
)

// Outcome identifies the YES or NO side of a binary market.
type Outcome string

const (
	YES Outcome = "YES"
	NO  Outcome = "NO"
)

var (
	// ErrInvalidLiquidity is returned when b <= 0.
	ErrInvalidLiquidity = errors.New("lmsr: liquidity parameter b must be positive")
	// ErrInvalidOutcome is returned for any Outcome other than YES/NO.
	ErrInvalidOutcome = errors.New("lmsr: outcome must be YES or NO")
	// ErrNonPositiveQty is returned when qty <= 0.
	ErrNonPositiveQty = errors.New("lmsr: qty must be positive")
	// ErrNonPositiveSpend is returned when spend <= 0.
	ErrNonPositiveSpend = errors.New("lmsr: spend must be positive")
	// ErrMarketSettled is returned for any trade attempted after settlement.
	ErrMarketSettled = errors.New("lmsr: market is settled")
	// ErrAlreadySettled is returned when Settle is called twice.
	ErrAlreadySettled = errors.New("lmsr: market already settled")
	// ErrInsufficientCash is returned when a trader cannot cover a buy.
	ErrInsufficientCash = errors.New("lmsr: insufficient cash")
	// ErrNoLiquidity is returned when quoteSpendBuy cannot make progress
	// because the outcome price is already at its ceiling.
	ErrNoLiquidity = errors.New("lmsr: no liquidity available at this price")
)

// solverMaxIterations bounds the binary-search spend-inversion solver in
// QuoteSpendBuy, per spec.md §9.
const solverMaxIterations = 60

var solverTolerance = decimal.New(1, -12)

// MarketState is the mutable state of one binary LMSR market.
type MarketState struct {
	QYes           decimal.Decimal
	QNo            decimal.Decimal
	B              decimal.Decimal
	TotalCollected decimal.Decimal
	Settled        bool
	Outcome        Outcome
}

// Ledger bundles a market's state with the trader accounts that can trade
// against it, plus a monotonic trade-id counter for deterministic
// TRD-NNNNNNNN ids.
type Ledger struct {
	Market   *MarketState
	Traders  *ledger.Book
	tradeSeq uint64
}

// InitLedger creates a new LMSR ledger: a fresh market at (qYes=0, qNo=0)
// with liquidity b, and the given seed traders.
func InitLedger(b decimal.Decimal, seeds []ledger.Seed) (*Ledger, error) {
	if b.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidLiquidity
	}
	book, err := ledger.NewBook(seeds)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		Market: &MarketState{
			QYes: decimal.Zero,
			QNo:  decimal.Zero,
			B:    b,
		},
		Traders: book,
	}, nil
}

// Cost computes the LMSR cost function:
//
//	C(qYes, qNo) = b * ln(exp(qYes/b) + exp(qNo/b))
//
// via the numerically stable log-sum-exp reduction: letting
// m = max(qYes, qNo)/b,
//
//	C = b * (m + ln(exp(qYes/b - m) + exp(qNo/b - m)))
//
// This is required so that e.g. qYes=10000, b=1 does not overflow.
func Cost(m *MarketState) decimal.Decimal {
	return costOf(m.QYes, m.QNo, m.B)
}

func costOf(qYes, qNo, b decimal.Decimal) decimal.Decimal {
	lse := decimalmath.LogSumExp(qYes.Div(b), qNo.Div(b))
	return b.Mul(lse)
}

// Prices is the pair of instantaneous YES/NO prices.
type Prices struct {
	PYes decimal.Decimal
	PNo  decimal.Decimal
}

// GetPrices computes the LMSR spot prices (the cost function's gradient):
//
//	pYES = exp(qYes/b) / (exp(qYes/b) + exp(qNo/b))
//	pNO  = 1 - pYES
//
// using the same max-subtraction stabilization as Cost.
func GetPrices(m *MarketState) Prices {
	pYes := decimalmath.Softmax2(m.QYes.Div(m.B), m.QNo.Div(m.B))
	return Prices{PYes: pYes, PNo: decimal.NewFromInt(1).Sub(pYes)}
}

func pricesAt(qYes, qNo, b decimal.Decimal) Prices {
	pYes := decimalmath.Softmax2(qYes.Div(b), qNo.Div(b))
	return Prices{PYes: pYes, PNo: decimal.NewFromInt(1).Sub(pYes)}
}

func quantitiesAfter(m *MarketState, outcome Outcome, delta decimal.Decimal) (qYes, qNo decimal.Decimal) {
	qYes, qNo = m.QYes, m.QNo
	switch outcome {
	case YES:
		qYes = qYes.Add(delta)
	case NO:
		qNo = qNo.Add(delta)
	}
	return
}

// QuoteQty is the result of QuoteQtyBuy.
type QuoteQty struct {
	Qty          decimal.Decimal
	Payment      decimal.Decimal
	AvgPrice     decimal.Decimal
	PricesBefore Prices
	PricesAfter  Prices
}

// QuoteQtyBuy quotes the payment required to buy qty shares of outcome,
// without mutating ledger state:
//
//	payment = C(qAfter) - C(qBefore)
//	avgPrice = payment / qty
//
// Rejects if the market is settled or qty <= 0.
func QuoteQtyBuy(m *MarketState, outcome Outcome, qty decimal.Decimal) (*QuoteQty, error) {
	if m.Settled {
		return nil, ErrMarketSettled
	}
	if outcome != YES && outcome != NO {
		return nil, ErrInvalidOutcome
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveQty
	}

	before := costOf(m.QYes, m.QNo, m.B)
	qYesAfter, qNoAfter := quantitiesAfter(m, outcome, qty)
	after := costOf(qYesAfter, qNoAfter, m.B)

	payment := after.Sub(before)
	return &QuoteQty{
		Qty:          qty,
		Payment:      payment,
		AvgPrice:     payment.Div(qty),
		PricesBefore: pricesAt(m.QYes, m.QNo, m.B),
		PricesAfter:  pricesAt(qYesAfter, qNoAfter, m.B),
	}, nil
}

// QuoteSpend is the result of QuoteSpendBuy.
type QuoteSpend struct {
	Qty         decimal.Decimal
	Spend       decimal.Decimal
	AvgPrice    decimal.Decimal
	PricesAfter Prices
}

// QuoteSpendBuy finds the maximum qty such that
// C(qBefore + qty*e_outcome) - C(qBefore) <= spend, via binary search on
// qty — monotonic inversion of the (strictly increasing, convex) cost
// function. The search window is [0, spend/priceBefore*2], a safe upper
// bound since the marginal cost of buying into outcome can only rise
// above its current price. Stops at cost error <= 1e-12 or after 60
// iterations, per spec.md §9. May spend slightly less than requested.
// Rejects if spend <= 0 or if the outcome's price is already 1 (no
// liquidity left to buy into).
func QuoteSpendBuy(m *MarketState, outcome Outcome, spend decimal.Decimal) (*QuoteSpend, error) {
	if m.Settled {
		return nil, ErrMarketSettled
	}
	if outcome != YES && outcome != NO {
		return nil, ErrInvalidOutcome
	}
	if spend.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveSpend
	}

	before := costOf(m.QYes, m.QNo, m.B)
	priceBefore := pricesAt(m.QYes, m.QNo, m.B)
	outcomePrice := priceBefore.PYes
	if outcome == NO {
		outcomePrice = priceBefore.PNo
	}
	if outcomePrice.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, ErrNoLiquidity
	}

	upper := spend.Div(outcomePrice).Mul(decimal.NewFromInt(2))
	lower := decimal.Zero

	costAt := func(qty decimal.Decimal) decimal.Decimal {
		qYesAfter, qNoAfter := quantitiesAfter(m, outcome, qty)
		return costOf(qYesAfter, qNoAfter, m.B).Sub(before)
	}

	mid := lower
	for i := 0; i < solverMaxIterations; i++ {
		mid = lower.Add(upper).Div(decimal.NewFromInt(2))
		diff := costAt(mid).Sub(spend)
		if diff.Abs().LessThanOrEqual(solverTolerance) {
			break
		}
		if diff.GreaterThan(decimal.Zero) {
			upper = mid
		} else {
			lower = mid
		}
	}

	qty := lower
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNoLiquidity
	}
	actualSpend := costAt(qty)

	qYesAfter, qNoAfter := quantitiesAfter(m, outcome, qty)
	return &QuoteSpend{
		Qty:         qty,
		Spend:       actualSpend,
		AvgPrice:    actualSpend.Div(qty),
		PricesAfter: pricesAt(qYesAfter, qNoAfter, m.B),
	}, nil
}

// BuyResult is returned by ExecuteBuy and ExecuteBuySpend.
type BuyResult struct {
	TradeID          string
	TraderID         string
	Outcome          Outcome
	Qty              decimal.Decimal
	Spend            decimal.Decimal
	AvgPrice         decimal.Decimal
	PricesBefore     Prices
	PricesAfter      Prices
	NewState         MarketState
	NewTraderAccount ledger.TraderAccount
	Timestamp        uint64
}

// ExecuteBuy validates, quotes, and atomically executes a buy of qty
// shares of outcome for traderID. Rejects unknown traders, non-positive
// qty, settled markets, and insufficient cash — no partial fill on
// rejection.
func ExecuteBuy(l *Ledger, traderID string, outcome Outcome, qty decimal.Decimal) (*BuyResult, error) {
	trader, err := l.Traders.Get(traderID)
	if err != nil {
		return nil, err
	}
	if l.Market.Settled {
		return nil, ErrMarketSettled
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveQty
	}

	quote, err := QuoteQtyBuy(l.Market, outcome, qty)
	if err != nil {
		return nil, err
	}
	if trader.Cash.LessThan(quote.Payment) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientCash, trader.Cash, quote.Payment)
	}

	return l.applyBuy(trader, outcome, quote)
}

// ExecuteBuySpend validates, quotes, and atomically executes the maximum
// buy of outcome shares affordable with spend, for traderID, via
// QuoteSpendBuy.
func ExecuteBuySpend(l *Ledger, traderID string, outcome Outcome, spend decimal.Decimal) (*BuyResult, error) {
	trader, err := l.Traders.Get(traderID)
	if err != nil {
		return nil, err
	}
	if l.Market.Settled {
		return nil, ErrMarketSettled
	}
	if spend.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveSpend
	}
	if trader.Cash.LessThan(spend) {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientCash, trader.Cash, spend)
	}

	quote, err := QuoteSpendBuy(l.Market, outcome, spend)
	if err != nil {
		return nil, err
	}

	qtyQuote := &QuoteQty{
		Qty:          quote.Qty,
		Payment:      quote.Spend,
		AvgPrice:     quote.AvgPrice,
		PricesBefore: pricesAt(l.Market.QYes, l.Market.QNo, l.Market.B),
		PricesAfter:  quote.PricesAfter,
	}
	return l.applyBuy(trader, outcome, qtyQuote)
}

func (l *Ledger) applyBuy(trader *ledger.TraderAccount, outcome Outcome, quote *QuoteQty) (*BuyResult, error) {
	trader.Cash = trader.Cash.Sub(quote.Payment)
	switch outcome {
	case YES:
		trader.YesShares = trader.YesShares.Add(quote.Qty)
		l.Market.QYes = l.Market.QYes.Add(quote.Qty)
	case NO:
		trader.NoShares = trader.NoShares.Add(quote.Qty)
		l.Market.QNo = l.Market.QNo.Add(quote.Qty)
	}
	l.Market.TotalCollected = l.Market.TotalCollected.Add(quote.Payment)

	l.tradeSeq++
	return &BuyResult{
		TradeID:          fmt.Sprintf("TRD-%08d", l.tradeSeq),
		TraderID:         trader.ID,
		Outcome:          outcome,
		Qty:              quote.Qty,
		Spend:            quote.Payment,
		AvgPrice:         quote.AvgPrice,
		PricesBefore:     quote.PricesBefore,
		PricesAfter:      quote.PricesAfter,
		NewState:         *l.Market,
		NewTraderAccount: *trader,
		Timestamp:        l.tradeSeq,
	}, nil
}

// WorstCaseLoss returns b * ln 2, the market maker's maximum possible
// liability for a binary market starting from (0,0): the bound achieved
// when all shares of one outcome would be paid out at settlement.
func WorstCaseLoss(b decimal.Decimal) decimal.Decimal {
	ln2, _ := decimalmath.Ln(decimal.NewFromInt(2))
	return b.Mul(ln2)
}

// SettleResult is returned by Settle.
type SettleResult struct {
	Outcome     Outcome
	TotalPayout decimal.Decimal
	ProfitLoss  decimal.Decimal
}

// Settle pays out trader.yesShares (if winner=YES) or trader.noShares (if
// winner=NO) as cash to every trader, marks the market settled, and
// returns the aggregate payout and the market maker's profit/loss
// (totalCollected - totalPayout). Rejects if already settled.
func Settle(l *Ledger, winner Outcome) (*SettleResult, error) {
	if l.Market.Settled {
		return nil, ErrAlreadySettled
	}
	if winner != YES && winner != NO {
		return nil, ErrInvalidOutcome
	}

	totalPayout := decimal.Zero
	for _, acct := range l.Traders.All() {
		trader, _ := l.Traders.Get(acct.ID)
		payout := trader.YesShares
		if winner == NO {
			payout = trader.NoShares
		}
		trader.Cash = trader.Cash.Add(payout)
		totalPayout = totalPayout.Add(payout)
	}

	l.Market.Settled = true
	l.Market.Outcome = winner

	return &SettleResult{
		Outcome:     winner,
		TotalPayout: totalPayout,
		ProfitLoss:  l.Market.TotalCollected.Sub(totalPayout),
	}, nil
}
