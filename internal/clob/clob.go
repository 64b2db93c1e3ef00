// Package clob implements a central limit order book matching engine for
// binary prediction-market shares: price-time-priority matching over
// sorted bid/ask price levels, each a FIFO queue of resting orders, under
// a sell-to-close collateral model (no naked shorts — a SELL order must
// be backed by shares the trader already holds).
//
// The price-level container is a github.com/tidwall/btree.BTreeG keyed by
// price, sorted descending for bids and ascending for asks, so the best
// price is always the tree minimum under its comparator. Matching sweeps
// MinMut() of the opposite side, consuming FIFO within each level.
package clob

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"github.com/atmx/predengine/internal/decimalmath"
	"github.com/atmx/predengine/internal/ledger"
)

// Side is the direction of an order.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusOpen             Status = "OPEN"
	StatusPartiallyFilled  Status = "PARTIALLY_FILLED"
	StatusFilled           Status = "FILLED"
	StatusCancelled        Status = "CANCELLED"
	StatusRejected         Status = "REJECTED"
)

// Outcome identifies the YES or NO side of a binary market.
type Outcome string

const (
	YES Outcome = "YES"
	NO  Outcome = "NO"
)

var (
	// ErrMarketSettled is returned when an order or cancel is attempted
	// against a settled market.
	ErrMarketSettled = errors.New("clob: market is settled")
	// ErrAlreadySettled is returned when Settle is called twice.
	ErrAlreadySettled = errors.New("clob: market already settled")
	// ErrInvalidOutcome is returned for any Outcome other than YES/NO.
	ErrInvalidOutcome = errors.New("clob: outcome must be YES or NO")
	// ErrNonPositiveQty is returned when qty <= 0.
	ErrNonPositiveQty = errors.New("clob: qty must be positive")
	// ErrInvalidSide is returned for any Side other than BUY/SELL.
	ErrInvalidSide = errors.New("clob: side must be BUY or SELL")
)

// LimitOrder is a resting or newly-placed order. Qty is the remaining
// quantity; OriginalQty never changes after placement.
type LimitOrder struct {
	OrderID     string
	TraderID    string
	Side        Side
	Price       decimal.Decimal
	Qty         decimal.Decimal
	OriginalQty decimal.Decimal
	Timestamp   uint64
	Status      Status
}

// Trade records one match between a resting and an aggressing order,
// executed at the resting order's price.
type Trade struct {
	TradeID      string
	BuyOrderID   string
	SellOrderID  string
	BuyTraderID  string
	SellTraderID string
	Price        decimal.Decimal
	Qty          decimal.Decimal
	Timestamp    uint64
}

type priceLevel struct {
	Price  decimal.Decimal
	Orders []*LimitOrder
}

type levels = btree.BTreeG[*priceLevel]

// OrderBook holds the bid and ask price levels for one market.
type OrderBook struct {
	bids *levels
	asks *levels
}

func newOrderBook() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.Price.GreaterThan(b.Price) })
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool { return a.Price.LessThan(b.Price) })
	return &OrderBook{bids: bids, asks: asks}
}

func (b *OrderBook) levelsFor(side Side) *levels {
	if side == BUY {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) oppositeLevelsFor(side Side) *levels {
	if side == BUY {
		return b.asks
	}
	return b.bids
}

type orderLocation struct {
	Side  Side
	Price decimal.Decimal
}

// Ledger bundles an order book with the trader accounts trading against
// it, plus monotonic counters for deterministic order/trade ids and
// FIFO timestamps.
type Ledger struct {
	Book       *OrderBook
	Traders    *ledger.Book
	Settled    bool
	Outcome    Outcome
	orderIndex map[string]orderLocation
	orderSeq   uint64
	tradeSeq   uint64
	clock      uint64
}

// InitLedger creates a fresh, empty order book over the given seed
// traders.
func InitLedger(seeds []ledger.Seed) (*Ledger, error) {
	book, err := ledger.NewBook(seeds)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		Book:       newOrderBook(),
		Traders:    book,
		orderIndex: map[string]orderLocation{},
	}, nil
}

func (l *Ledger) nextOrderID() string {
	l.orderSeq++
	return fmt.Sprintf("ORD-%08d", l.orderSeq)
}

func (l *Ledger) nextTradeID() string {
	l.tradeSeq++
	return fmt.Sprintf("TRD-%08d", l.tradeSeq)
}

func (l *Ledger) nextTimestamp() uint64 {
	l.clock++
	return l.clock
}

// OrderResult is returned by PlaceLimitOrder, PlaceMarketOrder, and
// CancelOrder.
type OrderResult struct {
	OrderID         string
	TraderID        string
	Side            Side
	Status          Status
	FilledQty       decimal.Decimal
	RemainingQty    decimal.Decimal
	AvgFillPrice    decimal.Decimal
	Trades          []*Trade
	RejectionReason string
}

func rejected(traderID string, side Side, qty decimal.Decimal, reason string) *OrderResult {
	return &OrderResult{
		TraderID:        traderID,
		Side:            side,
		Status:          StatusRejected,
		RemainingQty:    qty,
		RejectionReason: reason,
	}
}

func weightedAvgPrice(trades []*Trade) decimal.Decimal {
	if len(trades) == 0 {
		return decimal.Zero
	}
	totalQty := decimal.Zero
	totalNotional := decimal.Zero
	for _, t := range trades {
		totalQty = totalQty.Add(t.Qty)
		totalNotional = totalNotional.Add(t.Price.Mul(t.Qty))
	}
	return totalNotional.Div(totalQty)
}

// PlaceLimitOrder validates, matches, and rests (if unfilled) a limit
// order. Structural preconditions (unknown trader, settled market,
// non-positive qty) return an error. Policy violations (price out of
// range, insufficient shares/cash) return a REJECTED OrderResult with no
// error.
func PlaceLimitOrder(l *Ledger, traderID string, side Side, price, qty decimal.Decimal) (*OrderResult, error) {
	if side != BUY && side != SELL {
		return nil, ErrInvalidSide
	}
	if _, err := l.Traders.Get(traderID); err != nil {
		return nil, err
	}
	if l.Settled {
		return nil, ErrMarketSettled
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveQty
	}

	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThan(decimal.NewFromInt(1)) {
		return rejected(traderID, side, qty, "Price must be in (0, 1]"), nil
	}

	if side == SELL {
		available, err := GetAvailableShares(l, traderID)
		if err != nil {
			return nil, err
		}
		if available.LessThan(qty) {
			return rejected(traderID, side, qty, fmt.Sprintf("Insufficient shares. Available: %s", available)), nil
		}
	} else {
		available, err := GetAvailableCash(l, traderID)
		if err != nil {
			return nil, err
		}
		required := price.Mul(qty)
		if available.LessThan(required) {
			return rejected(traderID, side, qty, fmt.Sprintf("Insufficient cash. Available: %s", available)), nil
		}
	}

	order := &LimitOrder{
		OrderID:     l.nextOrderID(),
		TraderID:    traderID,
		Side:        side,
		Price:       price,
		Qty:         qty,
		OriginalQty: qty,
		Timestamp:   l.nextTimestamp(),
		Status:      StatusOpen,
	}

	trades := l.matchIncoming(order, false)
	return l.finalizeOrder(order, trades), nil
}

// PlaceMarketOrder validates and matches a market order against the
// opposite book at whatever prices are resting there. It never rests: any
// unfilled remainder is simply dropped, and the result status reflects
// the partial (or zero) fill.
func PlaceMarketOrder(l *Ledger, traderID string, side Side, qty decimal.Decimal) (*OrderResult, error) {
	if side != BUY && side != SELL {
		return nil, ErrInvalidSide
	}
	_, err := l.Traders.Get(traderID)
	if err != nil {
		return nil, err
	}
	if l.Settled {
		return nil, ErrMarketSettled
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNonPositiveQty
	}

	if side == SELL {
		available, err := GetAvailableShares(l, traderID)
		if err != nil {
			return nil, err
		}
		if available.LessThan(qty) {
			return rejected(traderID, side, qty, fmt.Sprintf("Insufficient shares. Available: %s", available)), nil
		}
	}

	order := &LimitOrder{
		OrderID:     l.nextOrderID(),
		TraderID:    traderID,
		Side:        side,
		Qty:         qty,
		OriginalQty: qty,
		Timestamp:   l.nextTimestamp(),
		Status:      StatusOpen,
	}

	trades := l.matchIncoming(order, true)
	result := l.finalizeOrder(order, trades)
	if result.Status == StatusOpen {
		// A market order never rests; an unmatched remainder with zero
		// fills is reported as a partial (possibly zero) fill, per spec.
		result.Status = StatusPartiallyFilled
	}
	return result, nil
}

// finalizeOrder computes fill accounting for a just-matched order and, if
// qty remains and the order is a limit order (has a nonzero Price), rests
// it on the book.
func (l *Ledger) finalizeOrder(order *LimitOrder, trades []*Trade) *OrderResult {
	filled := order.OriginalQty.Sub(order.Qty)
	result := &OrderResult{
		OrderID:      order.OrderID,
		TraderID:     order.TraderID,
		Side:         order.Side,
		FilledQty:    filled,
		RemainingQty: order.Qty,
		AvgFillPrice: weightedAvgPrice(trades),
		Trades:       trades,
	}

	switch {
	case order.Qty.IsZero():
		order.Status = StatusFilled
		result.Status = StatusFilled
	case filled.GreaterThan(decimal.Zero):
		order.Status = StatusPartiallyFilled
		result.Status = StatusPartiallyFilled
		if order.Price.IsPositive() {
			l.restOrder(order)
		}
	default:
		order.Status = StatusOpen
		result.Status = StatusOpen
		if order.Price.IsPositive() {
			l.restOrder(order)
		}
	}
	return result
}

func (l *Ledger) restOrder(order *LimitOrder) {
	bookLevels := l.Book.levelsFor(order.Side)
	level, ok := bookLevels.GetMut(&priceLevel{Price: order.Price})
	if ok {
		level.Orders = append(level.Orders, order)
	} else {
		bookLevels.Set(&priceLevel{Price: order.Price, Orders: []*LimitOrder{order}})
	}
	l.orderIndex[order.OrderID] = orderLocation{Side: order.Side, Price: order.Price}
}

// matchIncoming sweeps the opposite side of the book, filling incoming
// FIFO within each price level at the resting order's price, until
// incoming.Qty is exhausted or the book stops crossing. For market
// orders, marketOrder=true disables the crossing-price check so the
// order sweeps at whatever price the book offers. A market BUY is
// additionally capped by the buyer's cash at each fill, since it carries
// no limit price to pre-reserve against.
func (l *Ledger) matchIncoming(incoming *LimitOrder, marketOrder bool) []*Trade {
	oppBook := l.Book.oppositeLevelsFor(incoming.Side)
	var trades []*Trade

outer:
	for incoming.Qty.GreaterThan(decimal.Zero) {
		level, ok := oppBook.MinMut()
		if !ok {
			break
		}
		if !marketOrder {
			var crosses bool
			if incoming.Side == BUY {
				crosses = incoming.Price.GreaterThanOrEqual(level.Price)
			} else {
				crosses = incoming.Price.LessThanOrEqual(level.Price)
			}
			if !crosses {
				break
			}
		}

		consumed := 0
		for consumed < len(level.Orders) && incoming.Qty.GreaterThan(decimal.Zero) {
			resting := level.Orders[consumed]
			fillQty := decimalmath.Min(incoming.Qty, resting.Qty)

			if marketOrder && incoming.Side == BUY {
				buyer, _ := l.Traders.Get(incoming.TraderID)
				maxAffordable := buyer.Cash.Div(level.Price)
				if fillQty.GreaterThan(maxAffordable) {
					fillQty = maxAffordable
				}
				if fillQty.LessThanOrEqual(decimal.Zero) {
					if consumed > 0 {
						level.Orders = level.Orders[consumed:]
					}
					if len(level.Orders) == 0 {
						oppBook.Delete(level)
					}
					break outer
				}
			}

			trade := l.applyFill(incoming, resting, fillQty, level.Price)
			trades = append(trades, trade)
			incoming.Qty = incoming.Qty.Sub(fillQty)
			resting.Qty = resting.Qty.Sub(fillQty)

			if resting.Qty.IsZero() {
				resting.Status = StatusFilled
				delete(l.orderIndex, resting.OrderID)
				consumed++
			} else {
				resting.Status = StatusPartiallyFilled
			}
		}

		if consumed > 0 {
			level.Orders = level.Orders[consumed:]
		}
		if len(level.Orders) == 0 {
			oppBook.Delete(level)
		}
	}

	return trades
}

func (l *Ledger) applyFill(incoming, resting *LimitOrder, qty, price decimal.Decimal) *Trade {
	var buyTraderID, sellTraderID, buyOrderID, sellOrderID string
	if incoming.Side == BUY {
		buyTraderID, buyOrderID = incoming.TraderID, incoming.OrderID
		sellTraderID, sellOrderID = resting.TraderID, resting.OrderID
	} else {
		buyTraderID, buyOrderID = resting.TraderID, resting.OrderID
		sellTraderID, sellOrderID = incoming.TraderID, incoming.OrderID
	}

	buyer, _ := l.Traders.Get(buyTraderID)
	seller, _ := l.Traders.Get(sellTraderID)

	notional := price.Mul(qty)
	seller.YesShares = seller.YesShares.Sub(qty)
	seller.Cash = seller.Cash.Add(notional)
	buyer.YesShares = buyer.YesShares.Add(qty)
	buyer.Cash = buyer.Cash.Sub(notional)

	return &Trade{
		TradeID:      l.nextTradeID(),
		BuyOrderID:   buyOrderID,
		SellOrderID:  sellOrderID,
		BuyTraderID:  buyTraderID,
		SellTraderID: sellTraderID,
		Price:        price,
		Qty:          qty,
		Timestamp:    l.nextTimestamp(),
	}
}

// CancelOrder removes a resting order from the book. Cancelling an
// unknown orderID is an idempotent no-op (returns CANCELLED with no
// trades), per spec. Cancelling on a settled market is a structural
// precondition violation.
func CancelOrder(l *Ledger, orderID string) (*OrderResult, error) {
	if l.Settled {
		return nil, ErrMarketSettled
	}

	loc, ok := l.orderIndex[orderID]
	if !ok {
		return &OrderResult{OrderID: orderID, Status: StatusCancelled}, nil
	}

	bookLevels := l.Book.levelsFor(loc.Side)
	level, ok := bookLevels.GetMut(&priceLevel{Price: loc.Price})
	if !ok {
		delete(l.orderIndex, orderID)
		return &OrderResult{OrderID: orderID, Status: StatusCancelled}, nil
	}

	var removed *LimitOrder
	for i, o := range level.Orders {
		if o.OrderID == orderID {
			removed = o
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	delete(l.orderIndex, orderID)
	if len(level.Orders) == 0 {
		bookLevels.Delete(level)
	}
	if removed == nil {
		return &OrderResult{OrderID: orderID, Status: StatusCancelled}, nil
	}

	removed.Status = StatusCancelled
	return &OrderResult{
		OrderID:      orderID,
		TraderID:     removed.TraderID,
		Side:         removed.Side,
		Status:       StatusCancelled,
		FilledQty:    removed.OriginalQty.Sub(removed.Qty),
		RemainingQty: decimal.Zero,
	}, nil
}

// BestBid returns the top-of-book bid price, or false if the bid side is
// empty.
func BestBid(book *OrderBook) (decimal.Decimal, bool) {
	lvl, ok := book.bids.MinMut()
	if !ok {
		return decimal.Zero, false
	}
	return lvl.Price, true
}

// BestAsk returns the top-of-book ask price, or false if the ask side is
// empty.
func BestAsk(book *OrderBook) (decimal.Decimal, bool) {
	lvl, ok := book.asks.MinMut()
	if !ok {
		return decimal.Zero, false
	}
	return lvl.Price, true
}

// TopOfBook is a point-in-time best bid/ask pair, the payload recorded
// for an audit.BookSnapshot event so a reconnecting client can resync
// without replaying the whole log.
type TopOfBook struct {
	BestBid decimal.Decimal `json:"best_bid"`
	BestAsk decimal.Decimal `json:"best_ask"`
}

// GetTopOfBook returns the current best bid and ask, zero where a side
// is empty.
func GetTopOfBook(book *OrderBook) TopOfBook {
	bid, _ := BestBid(book)
	ask, _ := BestAsk(book)
	return TopOfBook{BestBid: bid, BestAsk: ask}
}

// Spread returns bestAsk - bestBid, or false if either side is empty.
func Spread(book *OrderBook) (decimal.Decimal, bool) {
	bid, okB := BestBid(book)
	ask, okA := BestAsk(book)
	if !okB || !okA {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// MidPrice returns (bestBid + bestAsk) / 2, or false if either side is
// empty.
func MidPrice(book *OrderBook) (decimal.Decimal, bool) {
	bid, okB := BestBid(book)
	ask, okA := BestAsk(book)
	if !okB || !okA {
		return decimal.Zero, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// GetDepth sums order quantity across the top n price levels on side.
func GetDepth(book *OrderBook, side Side, n int) decimal.Decimal {
	bookLevels := book.levelsFor(side)
	total := decimal.Zero
	count := 0
	bookLevels.Scan(func(lvl *priceLevel) bool {
		if count >= n {
			return false
		}
		for _, o := range lvl.Orders {
			total = total.Add(o.Qty)
		}
		count++
		return true
	})
	return total
}

// GetOrdersAtPrice enumerates the orders resting at exactly price on
// side, in FIFO order.
func GetOrdersAtPrice(book *OrderBook, side Side, price decimal.Decimal) []*LimitOrder {
	bookLevels := book.levelsFor(side)
	lvl, ok := bookLevels.GetMut(&priceLevel{Price: price})
	if !ok {
		return nil
	}
	out := make([]*LimitOrder, len(lvl.Orders))
	copy(out, lvl.Orders)
	return out
}

// GetOpenOrders returns every resting order for traderID across both
// sides of the book, ordered by timestamp.
func GetOpenOrders(l *Ledger, traderID string) []*LimitOrder {
	var out []*LimitOrder
	for _, side := range []*levels{l.Book.bids, l.Book.asks} {
		side.Scan(func(lvl *priceLevel) bool {
			for _, o := range lvl.Orders {
				if o.TraderID == traderID {
					out = append(out, o)
				}
			}
			return true
		})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Timestamp > out[j].Timestamp; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// GetAvailableShares returns a trader's yesShares minus the quantity
// reserved by that trader's own open SELL orders — the sell-to-close
// collateral check.
func GetAvailableShares(l *Ledger, traderID string) (decimal.Decimal, error) {
	trader, err := l.Traders.Get(traderID)
	if err != nil {
		return decimal.Zero, err
	}
	reserved := decimal.Zero
	l.Book.asks.Scan(func(lvl *priceLevel) bool {
		for _, o := range lvl.Orders {
			if o.TraderID == traderID {
				reserved = reserved.Add(o.Qty)
			}
		}
		return true
	})
	return trader.YesShares.Sub(reserved), nil
}

// GetAvailableCash returns a trader's cash minus the notional already
// committed by their other open BUY orders, mirroring GetAvailableShares
// on the sell side. Used to validate a new BUY order so that two resting
// orders from the same trader can never together overcommit their cash.
func GetAvailableCash(l *Ledger, traderID string) (decimal.Decimal, error) {
	trader, err := l.Traders.Get(traderID)
	if err != nil {
		return decimal.Zero, err
	}
	reserved := decimal.Zero
	l.Book.bids.Scan(func(lvl *priceLevel) bool {
		for _, o := range lvl.Orders {
			if o.TraderID == traderID {
				reserved = reserved.Add(o.Price.Mul(o.Qty))
			}
		}
		return true
	})
	return trader.Cash.Sub(reserved), nil
}

// GetTraderPortfolioValue returns cash plus the mark-to-market value of
// yesShares at currentPrice and noShares at (1 - currentPrice).
func GetTraderPortfolioValue(l *Ledger, traderID string, currentPrice decimal.Decimal) (decimal.Decimal, error) {
	trader, err := l.Traders.Get(traderID)
	if err != nil {
		return decimal.Zero, err
	}
	one := decimal.NewFromInt(1)
	value := trader.Cash.
		Add(trader.YesShares.Mul(currentPrice)).
		Add(trader.NoShares.Mul(one.Sub(currentPrice)))
	return value, nil
}

// PayoutRecord is one trader's settlement accounting, real or preview.
type PayoutRecord struct {
	InitialCash    decimal.Decimal
	PayoutReceived decimal.Decimal
	FinalCash      decimal.Decimal
	NetProfit      decimal.Decimal
}

// SettlementResult is returned by Settle.
type SettlementResult struct {
	Outcome       Outcome
	TotalPayout   decimal.Decimal
	TraderPayouts map[string]PayoutRecord
}

// Settle clears the book, pays every trader their winning-side shares in
// cash, zeroes all share balances, and marks the market settled. Rejects
// if already settled.
func Settle(l *Ledger, outcome Outcome) (*SettlementResult, error) {
	if l.Settled {
		return nil, ErrAlreadySettled
	}
	if outcome != YES && outcome != NO {
		return nil, ErrInvalidOutcome
	}

	l.Book = newOrderBook()
	l.orderIndex = map[string]orderLocation{}

	totalPayout := decimal.Zero
	traderPayouts := make(map[string]PayoutRecord)
	for _, acct := range l.Traders.All() {
		trader, _ := l.Traders.Get(acct.ID)
		initialCash := trader.Cash
		payout := trader.YesShares
		if outcome == NO {
			payout = trader.NoShares
		}
		trader.Cash = trader.Cash.Add(payout)
		trader.YesShares = decimal.Zero
		trader.NoShares = decimal.Zero
		totalPayout = totalPayout.Add(payout)
		traderPayouts[acct.ID] = PayoutRecord{
			InitialCash:    initialCash,
			PayoutReceived: payout,
			FinalCash:      trader.Cash,
			NetProfit:      payout,
		}
	}

	l.Settled = true
	l.Outcome = outcome
	return &SettlementResult{Outcome: outcome, TotalPayout: totalPayout, TraderPayouts: traderPayouts}, nil
}

// GetSettlementPreview computes the same per-trader payout structure as
// Settle for both possible outcomes, without mutating ledger state.
func GetSettlementPreview(l *Ledger) map[Outcome]map[string]PayoutRecord {
	result := make(map[Outcome]map[string]PayoutRecord, 2)
	for _, outcome := range []Outcome{YES, NO} {
		perTrader := make(map[string]PayoutRecord, len(l.Traders.All()))
		for _, acct := range l.Traders.All() {
			payout := acct.YesShares
			if outcome == NO {
				payout = acct.NoShares
			}
			perTrader[acct.ID] = PayoutRecord{
				InitialCash:    acct.Cash,
				PayoutReceived: payout,
				FinalCash:      acct.Cash.Add(payout),
				NetProfit:      payout,
			}
		}
		result[outcome] = perTrader
	}
	return result
}
