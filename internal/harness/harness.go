// Package harness provides the glue a front end or test driver needs
// around the bare LMSR/CLOB engines: named presets for quick setup,
// error-category formatting (structural vs. policy, per spec.md §7),
// and a deterministic scenario replay driver that exercises either
// engine through its audit log.
package harness

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/atmx/predengine/internal/audit"
	"github.com/atmx/predengine/internal/clob"
	"github.com/atmx/predengine/internal/ledger"
	"github.com/atmx/predengine/internal/lmsr"
)

var validate = validator.New()

// Preset is a named (liquidity, seed traders) tuple for demos and tests.
type Preset struct {
	Name      string
	Liquidity decimal.Decimal
	Seeds     []ledger.Seed
}

// Presets are the built-in named market configurations.
var Presets = map[string]Preset{
	"small-market": {
		Name:      "small-market",
		Liquidity: decimal.NewFromInt(10),
		Seeds: []ledger.Seed{
			{ID: "alice", Cash: decimal.NewFromInt(1000)},
			{ID: "bob", Cash: decimal.NewFromInt(1000)},
		},
	},
	"deep-market": {
		Name:      "deep-market",
		Liquidity: decimal.NewFromInt(1000),
		Seeds: []ledger.Seed{
			{ID: "alice", Cash: decimal.NewFromInt(1000000)},
			{ID: "bob", Cash: decimal.NewFromInt(1000000)},
			{ID: "carol", Cash: decimal.NewFromInt(1000000)},
		},
	},
}

// GetPreset looks up a named preset.
func GetPreset(name string) (Preset, error) {
	p, ok := Presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("harness: unknown preset %q", name)
	}
	return p, nil
}

// ErrorCategory classifies an engine error per spec.md §7.
type ErrorCategory string

const (
	CategoryStructural ErrorCategory = "STRUCTURAL"
	CategoryPolicy      ErrorCategory = "POLICY"
	CategoryUnknown     ErrorCategory = "UNKNOWN"
)

// Classify reports whether err is a structural precondition violation (a
// caller bug) or a policy violation (expected, recoverable). CLOB policy
// violations normally surface as a REJECTED OrderResult rather than an
// error — Classify exists for the LMSR engine, which has no REJECTED
// status and reports insufficient-cash as a returned error instead.
func Classify(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case errors.Is(err, lmsr.ErrInsufficientCash):
		return CategoryPolicy
	case errors.Is(err, lmsr.ErrMarketSettled),
		errors.Is(err, lmsr.ErrAlreadySettled),
		errors.Is(err, lmsr.ErrInvalidOutcome),
		errors.Is(err, lmsr.ErrNonPositiveQty),
		errors.Is(err, lmsr.ErrNonPositiveSpend),
		errors.Is(err, lmsr.ErrInvalidLiquidity),
		errors.Is(err, clob.ErrMarketSettled),
		errors.Is(err, clob.ErrAlreadySettled),
		errors.Is(err, clob.ErrInvalidOutcome),
		errors.Is(err, clob.ErrNonPositiveQty),
		errors.Is(err, clob.ErrInvalidSide),
		errors.Is(err, ledger.ErrUnknownTrader):
		return CategoryStructural
	default:
		return CategoryUnknown
	}
}

// FormatError renders err for a front end, in the style of the teacher's
// writeError convention: a short, user-facing message plus its category.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("[%s] %s", Classify(err), err.Error())
}

// ValidateStruct runs struct-tag validation (go-playground/validator) on
// request-shaped input before it reaches an engine call, so malformed
// front-end input is rejected before it can trip a structural
// precondition inside the engine.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("harness: validation failed: %w", err)
	}
	return nil
}
