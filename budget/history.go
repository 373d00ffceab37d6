/*
history.go - Budget history and year rollover

PURPOSE:
  The history is an append-only, oldest-first sequence of ledgers. The last
  entry is the current year and is flagged year-to-date. When the simulated
  year advances past it, the ledger is closed (valid, no longer year-to-date),
  listeners are told once, and a new ledger carrying the closing balance and
  the spending controls is appended.

RELATIVE YEARS (Budget):
   0        current ledger
  -1, -2..  previous years, while history lasts
   1        estimate for the rest of the current year
   2        estimate for next year
  >2        empty projection
  beyond history: empty ledger with the good-faith line of credit

SEE ALSO:
  - projection.go: Update drives rollYear once per tick and fires the event
  - store.go: ArchivingSink persists closed ledgers
*/
package budget

// =============================================================================
// SNAPSHOTS - Every read returns a copy
// =============================================================================

// Budget returns a snapshot of the ledger yearRel years from now. The current
// ledger is created on first access.
func (e *Engine) Budget(yearRel int) Budget {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current()

	year := yearRel + e.host.Clock.BaseYear()
	if yearRel > 0 {
		year--
	}

	switch {
	case yearRel == 2:
		return e.estimateNext
	case yearRel == 1:
		return e.estimate
	case yearRel > 2:
		return NewBudget(year, 0)
	case -yearRel < len(e.history):
		return e.history[len(e.history)+yearRel-1]
	default:
		b := NewBudget(year, 0)
		b.Line[LineOfCredit] = e.c(CGoodFaithLOC)
		return b
	}
}

// Current returns a snapshot of the current ledger, creating it if needed.
func (e *Engine) Current() Budget {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.current()
}

// History returns a copy of all ledgers, oldest first.
func (e *Engine) History() []Budget {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Budget, len(e.history))
	copy(out, e.history)
	return out
}

// NumHistoricalBudgets is the number of closed years (-1 before the first
// ledger exists).
func (e *Engine) NumHistoricalBudgets() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.history) - 1
}

// =============================================================================
// ROLLOVER
// =============================================================================

// rollYear closes the current ledger when the calendar has moved past it. It
// returns the ledger to update this tick and, when a year closed, a copy of
// the closed ledger for the caller to announce.
func (e *Engine) rollYear() (cur *Budget, closed Budget, rolled bool) {
	cur = e.current()
	baseYear := e.host.Clock.BaseYear()
	if cur.Year >= baseYear {
		return cur, Budget{}, false
	}

	cur.Flags = FlagValid
	closed = *cur

	next := NewBudget(baseYear, FlagYearToDate|FlagValid)
	next.Control = closed.Control
	next.Line[BudgetBalance] = closed.Line[BudgetBalance]
	e.history = append(e.history, next)
	e.yearDurationSum = 0

	e.host.Log.WithField("year", closed.Year).
		WithField("balance", closed.Line[BudgetBalance]).
		Info("Budget year closed")

	return e.current(), closed, true
}

// =============================================================================
// PERSISTED STATE
// =============================================================================

// State is everything a save file carries about the treasury.
type State struct {
	// TaxRates holds the stored rate of every tax line.
	TaxRates          map[Line]float64
	LoanRepaymentTime float64

	History      []Budget
	Estimate     Budget
	EstimateNext Budget

	// LegacyBalance is set by files written before history existed; it is
	// the balance of the current ledger.
	LegacyBalance    float64
	HasLegacyBalance bool
}

// Fallbacks are the engine-dependent replacement values used when sanitizing
// a loaded State.
type Fallbacks struct {
	StartingMoney float64
	LineOfCredit  float64
	StartYear     float64
}

// State returns a deep copy of the persisted state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := State{
		TaxRates:          make(map[Line]float64, len(TaxLines)),
		LoanRepaymentTime: e.loanRepaymentTime,
		History:           make([]Budget, len(e.history)),
		Estimate:          e.estimate,
		EstimateNext:      e.estimateNext,
	}
	for _, l := range TaxLines {
		s.TaxRates[l] = e.taxes.Rate(l)
	}
	copy(s.History, e.history)
	return s
}

// Fallbacks returns the replacement values for corrupt loaded fields.
func (e *Engine) Fallbacks() Fallbacks {
	return Fallbacks{
		StartingMoney: e.c(CStartingMoney),
		LineOfCredit:  e.c(CGoodFaithLOC) * e.inflation(),
		StartYear:     e.c(CStartYear),
	}
}

// Restore replaces the engine state with s, which must already be sanitized.
// Older files loaded outside game mode are discarded for a full reset.
func (e *Engine) Restore(s State, version, legacyResetVersion int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for l, rate := range s.TaxRates {
		e.taxes.restoreRate(l, rate)
	}
	e.loanRepaymentTime = s.LoanRepaymentTime
	e.assetSampled = false
	e.yearDurationSum = 0

	if s.HasLegacyBalance {
		e.history = nil
		e.estimate.clear()
		e.estimateNext.clear()
		e.current().Line[BudgetBalance] = s.LegacyBalance
	} else {
		e.history = append(e.history[:0:0], s.History...)
		e.estimate = s.Estimate
		e.estimateNext = s.EstimateNext
	}

	if e.mode() != ModeGame && version <= legacyResetVersion {
		e.host.Log.WithField("version", version).Info("Resetting treasury after legacy load")
		e.resetLocked()
	}
}
