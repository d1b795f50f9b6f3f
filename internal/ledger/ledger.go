// Package ledger keeps the running total of paid invoice amounts.
//
// The total is held as a decimal so that paying and then un-paying an
// invoice returns it to exactly the prior value. It is persisted after every
// change under StorageKey and re-derived from the authoritative invoice list
// by Reconcile whenever the dashboard data is (re)loaded.
package ledger

import (
	"context"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"vendorsync/internal/logger"
	"vendorsync/pkg/models"
)

// StorageKey is the key the total is persisted under in every Store.
const StorageKey = "vendorsync_total_spend"

const (
	// MaxChange bounds a single Add or Subtract and a single invoice's
	// contribution during Reconcile.
	MaxChange = 10_000_000
	// MaxTotal bounds the total itself. Set resets anything larger to zero.
	MaxTotal = 1_000_000_000
)

var (
	maxChange = decimal.NewFromInt(MaxChange)
	maxTotal  = decimal.NewFromInt(MaxTotal)
)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	total decimal.Decimal
	store Store

	onChange func(total float64)
	log      zerolog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithOnChange registers a callback invoked with the new total after every
// change. It runs without the ledger lock held.
func WithOnChange(fn func(total float64)) Option {
	return func(l *Ledger) { l.onChange = fn }
}

// New restores the persisted total from store. A missing, unparseable or
// out-of-range value starts the ledger at zero.
func New(ctx context.Context, store Store, opts ...Option) (*Ledger, error) {
	const op = "New"

	l := &Ledger{
		total: decimal.Zero,
		store: store,
		log:   logger.WithComponent("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}

	raw, ok, err := store.Load(ctx)
	if err != nil {
		return nil, WrapLedgerError(op, err, "load persisted total")
	}
	if !ok {
		return l, nil
	}

	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() || v.GreaterThan(maxTotal) {
		l.log.Warn().Str("value", raw).Msg("Ignoring invalid persisted total spend")
		return l, nil
	}
	l.total = v
	return l, nil
}

// Total returns the current total.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total.InexactFloat64()
}

// Decimal returns the current total without float conversion.
func (l *Ledger) Decimal() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Set replaces the total. Amounts that are not finite, negative or above
// MaxTotal set the total to zero instead.
func (l *Ledger) Set(ctx context.Context, amount float64) {
	v := decimal.Zero
	if isFinite(amount) && amount >= 0 && amount <= MaxTotal {
		v = decimal.NewFromFloat(amount)
	} else {
		l.log.Warn().Float64("amount", amount).Msg("Total spend out of range, resetting to zero")
	}
	l.setDecimal(ctx, v)
}

// Add increases the total by amount.
func (l *Ledger) Add(ctx context.Context, amount float64) error {
	d, err := checkChange("Add", amount)
	if err != nil {
		return err
	}
	l.apply(ctx, func(t decimal.Decimal) decimal.Decimal { return t.Add(d) })
	return nil
}

// Subtract decreases the total by amount. The total never drops below zero.
func (l *Ledger) Subtract(ctx context.Context, amount float64) error {
	d, err := checkChange("Subtract", amount)
	if err != nil {
		return err
	}
	l.apply(ctx, func(t decimal.Decimal) decimal.Decimal {
		next := t.Sub(d)
		if next.IsNegative() {
			l.log.Warn().Str("total", t.String()).Str("amount", d.String()).Msg("Subtraction would go below zero, clamping")
			return decimal.Zero
		}
		return next
	})
	return nil
}

// Reset zeroes the total and removes it from the store.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.total = decimal.Zero
	l.mu.Unlock()

	if err := l.store.Clear(ctx); err != nil {
		return WrapLedgerError("Reset", err, "clear persisted total")
	}
	l.notify(0)
	return nil
}

// Drift compares the ledger before and after a Reconcile.
type Drift struct {
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
	Skipped  int     `json:"skipped"`
}

// HasDrift reports whether reconciliation changed the total.
func (d Drift) HasDrift() bool {
	return d.Delta != 0
}

// PaidTotal sums the totals of paid invoices. Amounts that are not finite,
// negative or above MaxChange are skipped and counted.
func PaidTotal(invoices []models.Invoice) (decimal.Decimal, int) {
	sum := decimal.Zero
	skipped := 0
	for _, inv := range invoices {
		if !inv.IsPaid() {
			continue
		}
		amount := inv.TotalAmount
		if !isFinite(amount) || amount < 0 || amount > MaxChange {
			skipped++
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(amount))
	}
	return sum, skipped
}

// Reconcile recomputes the total from the authoritative invoice list.
func (l *Ledger) Reconcile(ctx context.Context, invoices []models.Invoice) Drift {
	sum, skipped := PaidTotal(invoices)
	if sum.GreaterThan(maxTotal) {
		l.log.Warn().Str("sum", sum.String()).Msg("Reconciled total spend out of range, resetting to zero")
		sum = decimal.Zero
	}

	l.mu.Lock()
	previous := l.total
	l.mu.Unlock()

	l.setDecimal(ctx, sum)

	drift := Drift{
		Previous: previous.InexactFloat64(),
		Current:  sum.InexactFloat64(),
		Delta:    sum.Sub(previous).InexactFloat64(),
		Skipped:  skipped,
	}
	if skipped > 0 {
		l.log.Warn().Int("skipped", skipped).Msg("Skipped invalid invoice amounts while reconciling")
	}
	return drift
}

func (l *Ledger) setDecimal(ctx context.Context, v decimal.Decimal) {
	l.apply(ctx, func(decimal.Decimal) decimal.Decimal { return v })
}

// apply updates the total under the lock, then persists and notifies.
// Persistence failures are logged; the in-memory total stays authoritative
// until the next Reconcile.
func (l *Ledger) apply(ctx context.Context, fn func(decimal.Decimal) decimal.Decimal) {
	l.mu.Lock()
	l.total = fn(l.total)
	next := l.total
	l.mu.Unlock()

	if err := l.store.Save(ctx, next.String()); err != nil {
		l.log.Warn().Err(err).Msg("Failed to persist total spend")
	}
	l.notify(next.InexactFloat64())
}

func (l *Ledger) notify(total float64) {
	if l.onChange != nil {
		l.onChange(total)
	}
}

func checkChange(op string, amount float64) (decimal.Decimal, error) {
	if !isFinite(amount) || amount < 0 || amount > MaxChange {
		return decimal.Zero, &LedgerError{Op: op, Err: ErrInvalidAmount, Amount: amount}
	}
	return decimal.NewFromFloat(amount), nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
