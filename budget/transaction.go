/*
transaction.go - Validated money movements

PURPOSE:
  The only way money enters or leaves a ledger. Every primitive write
  cascades into the aggregate lines, so totals, cashflow and balance are
  always the running sum of what was booked.

ENTRY POINTS (ascending strictness):
  ForceTransactionOn: unconditional; only a non-finite amount is refused
                      (reported, returns false)
  TransactionOn:      policy-gated (mode, sign, affordability)
  CanBuyOn:           read-only affordability check
  ForceTransaction / Transaction / CanBuy target the current ledger.

CASCADE:
  amount on line L is also written to Cashflow and BudgetBalance, then:
    income:    TotalIncome (+ TotalEarnings if mandatory)
    expense:   TotalExpenses, then TotalMandatory + TotalEarnings (mandatory)
               or TotalDiscretionary
  Each write is validated on its own; the policy gate applies only to L.

STATISTICS:
  Writes to the current ledger on lines not flagged NotAggregate are
  reported to the statistics sink. Expenses report as positive consumption,
  income (and Cashflow) keep their sign.
*/
package budget

// =============================================================================
// PUBLIC ENTRY POINTS
// =============================================================================

// ForceTransaction books amount on the current ledger without policy checks.
func (e *Engine) ForceTransaction(line Line, amount float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forceTransaction(e.current(), line, amount)
}

// ForceTransactionOn books amount on b without policy checks. b is normally
// a caller-owned scratch ledger.
func (e *Engine) ForceTransactionOn(b *Budget, line Line, amount float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.forceTransaction(b, line, amount)
}

// Transaction books amount on the current ledger if policy allows it.
// Expenses are negative amounts.
func (e *Engine) Transaction(line Line, amount float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transaction(e.current(), line, amount)
}

// TransactionOn books amount on b if policy allows it.
func (e *Engine) TransactionOn(b *Budget, line Line, amount float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transaction(b, line, amount)
}

// CanBuy reports whether spending cost on line is affordable now.
func (e *Engine) CanBuy(line Line, cost float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canBuy(e.current(), line, cost)
}

// CanBuyOn reports whether spending cost on line is affordable on b.
func (e *Engine) CanBuyOn(b *Budget, line Line, cost float64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.canBuy(b, line, cost)
}

// =============================================================================
// GATE
// =============================================================================

func (e *Engine) canBuy(b *Budget, line Line, cost float64) bool {
	info := line.Info()
	return info.IsMandatory ||
		info.IsIncome ||
		e.mode() == ModeTest ||
		cost <= 0 ||
		cost <= b.Line[BudgetBalance]+b.Line[LineOfCredit]
}

func (e *Engine) transaction(b *Budget, line Line, amount float64) bool {
	if !line.Valid() {
		return false
	}
	switch e.mode() {
	case ModeGame:
	case ModeTest:
		return true
	default:
		return false
	}

	info := line.Info()
	if !info.IsIncome && amount > 0 {
		return false
	}
	if !info.IsMandatory && !e.canBuy(b, line, -amount) {
		return false
	}
	return e.forceTransaction(b, line, amount)
}

// =============================================================================
// CASCADE
// =============================================================================

func (e *Engine) forceTransaction(b *Budget, line Line, amount float64) bool {
	if !line.Valid() {
		return false
	}
	if !isFinite(amount) {
		e.report("transaction", line.String(), amount)
		return false
	}
	info := line.Info()

	e.subtransaction(b, line, amount)
	e.subtransaction(b, Cashflow, amount)
	e.subtransaction(b, BudgetBalance, amount)

	if info.IsIncome {
		e.subtransaction(b, TotalIncome, amount)
		if info.IsMandatory {
			e.subtransaction(b, TotalEarnings, amount)
		}
		return true
	}

	e.subtransaction(b, TotalExpenses, amount)
	if info.IsMandatory {
		e.subtransaction(b, TotalMandatory, amount)
		e.subtransaction(b, TotalEarnings, amount)
	} else {
		e.subtransaction(b, TotalDiscretionary, amount)
	}
	return true
}

// subtransaction is the single primitive write.
func (e *Engine) subtransaction(b *Budget, line Line, amount float64) {
	if !isFinite(amount) {
		e.report("transaction", line.String(), amount)
		return
	}

	b.Line[line] += amount

	if !e.isCurrent(b) {
		return
	}
	info := line.Info()
	if info.NotAggregate {
		return
	}
	stat := amount
	if line != Cashflow && !info.IsIncome {
		stat = -amount
	}
	stats := e.host.Stats
	stats.AdjustStat(stats.OurCity(), BudgetStat(line), stat)
}

// =============================================================================
// BOOKER - Lets host callbacks book money while the engine is locked
// =============================================================================

type lockedBooker struct{ e *Engine }

func (lb lockedBooker) TransactionOn(b *Budget, line Line, amount float64) bool {
	return lb.e.transaction(b, line, amount)
}

func (lb lockedBooker) EffectiveTaxRate(l Line) float64 {
	return lb.e.taxes.EffectiveRate(l)
}
