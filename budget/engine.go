package budget

import (
	"math"
	"sync"
)

// =============================================================================
// ENGINE - The treasury of one running simulation
// =============================================================================

const (
	// DefaultLoanRepaymentTime is the repayment time after Reset.
	DefaultLoanRepaymentTime = 1.0

	// FallbackLoanRepaymentTime replaces an invalid repayment time found while
	// computing the interest rate or loading a save. It intentionally differs
	// from DefaultLoanRepaymentTime.
	FallbackLoanRepaymentTime = 5.0
)

// Engine owns the budget history, the estimate ledgers, the tax policy and the
// loan repayment time. All methods are safe for concurrent use; ticks and
// transactions are serialized, and every read returns a copy.
type Engine struct {
	mu   sync.RWMutex
	host Host

	taxes             TaxPolicy
	loanRepaymentTime float64

	history      []Budget
	estimate     Budget
	estimateNext Budget

	yearDurationSum float64
	assetValue      float64
	lastAssetSample float64
	assetSampled    bool
}

// New creates an engine in its reset state.
func New(host Host) *Engine {
	e := &Engine{host: host.withDefaults()}
	e.resetLocked()
	return e
}

// Reset discards all history and policy and returns to the initial state.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	e.loanRepaymentTime = DefaultLoanRepaymentTime
	e.lastAssetSample = 0
	e.assetSampled = false
	e.assetValue = 0
	e.yearDurationSum = 0

	e.history = nil
	e.estimate.clear()
	e.estimateNext.clear()
	e.taxes = DefaultTaxPolicy()
}

// Reporter is the diagnostic sink the engine reports to.
func (e *Engine) Reporter() Reporter { return e.host.Reporter }

// Mode is the host's current simulation mode.
func (e *Engine) Mode() Mode { return e.mode() }

func (e *Engine) c(id ConstantID) float64 { return e.host.Constants.C(id) }

func (e *Engine) inflation() float64 { return e.host.Economy.Inflation() }

func (e *Engine) mode() Mode { return e.host.Mode.GameMode() }

// current returns the current ledger, creating it on first access.
func (e *Engine) current() *Budget {
	if len(e.history) == 0 {
		b := NewBudget(e.host.Clock.BaseYear(), FlagYearToDate|FlagValid)
		b.Line[BudgetBalance] = e.c(CStartingMoney)
		e.history = append(e.history, b)
	}
	return &e.history[len(e.history)-1]
}

// isCurrent reports whether b is the engine's current ledger.
func (e *Engine) isCurrent(b *Budget) bool {
	return len(e.history) > 0 && b == &e.history[len(e.history)-1]
}

func (e *Engine) report(op, field string, value float64) {
	e.host.Reporter.Report(&NumericError{Op: op, Field: field, Value: value, Err: classify(value)})
}

func (e *Engine) reportFallback(op, field string, value, fallback float64) {
	e.host.Reporter.Report(&NumericError{
		Op: op, Field: field, Value: value,
		Fallback: fallback, HasFallback: true,
		Err: classify(value),
	})
}

func classify(v float64) error {
	if isFinite(v) {
		return ErrOutOfDomain
	}
	return ErrNonFinite
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// =============================================================================
// LOAN REPAYMENT TIME
// =============================================================================

func (e *Engine) LoanRepaymentTime() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loanRepaymentTime
}

func (e *Engine) SetLoanRepaymentTime(years float64) error {
	if !isFinite(years) || years <= 0 {
		return ErrInvalidRepaymentTime
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loanRepaymentTime = years
	return nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

// Credit is the current balance plus the current line of credit.
func (e *Engine) Credit() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current().Credit()
}

// Earnings is the projected total earnings of the current year.
func (e *Engine) Earnings() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.estimate.Line[TotalEarnings]
}

// =============================================================================
// BUDGET CONTROLS - Spending multipliers on the current ledger
// =============================================================================

func (e *Engine) BudgetControl(l Line) float64 {
	if !l.Valid() {
		return 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current().Control[l]
}

func (e *Engine) SetBudgetControl(l Line, v float64) error {
	if !l.Valid() {
		return ErrInvalidLine
	}
	if !isFinite(v) || v < 0 {
		return ErrInvalidControl
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current().Control[l] = v
	return nil
}

// BudgetControlEffect is the control raised to the BudgetControlFactor power,
// the strength other subsystems apply to discretionary effects.
func (e *Engine) BudgetControlEffect(l Line) float64 {
	return math.Pow(e.BudgetControl(l), e.c(CBudgetControlFactor))
}

// =============================================================================
// RETAIL
// =============================================================================

// MakeRetailTransaction records one retail purchase by a person with the given
// education level (0 none, 1 high school, 2+ college) and books the sales tax
// on it when the econ belongs to the city.
func (e *Engine) MakeRetailTransaction(econ EconID, eduLevel int, isTourist bool) {
	var value float64
	switch {
	case eduLevel > 1:
		value = e.c(CCollegeEduRetailSpending)
	case eduLevel == 1:
		value = e.c(CHSEduRetailSpending)
	default:
		value = e.c(CNoEduRetailSpending)
	}
	value *= e.inflation()

	stats := e.host.Stats
	stats.AdjustStat(econ, RetailTransactions, value)
	if isTourist {
		stats.AdjustStat(econ, TouristTransactions, value)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.taxes.Enabled(SalesTax) && stats.IsCityEcon(econ) {
		e.transaction(e.current(), SalesTax, value*e.taxes.EffectiveRate(SalesTax))
	}
}
