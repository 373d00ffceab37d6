/*
interest.go - Interest on debt and the line of credit

PURPOSE:
  A city with a negative balance pays continuously compounded interest. The
  line of credit is sized from assets, a good-faith base and projected
  earnings, discounted over the loan repayment time.

FORMULAS:
  interestRate = nationalRate + 0.002 * loanRepaymentTime
  compound(r, t) = e^(r*t)
  interest(d)    = (compound(rate, d) - 1) * |balance|      (balance < 0 only)
  LOC            = (assets*AssetLOC + GoodFaithLOC*inflation + earnings)
                   * repay / compound(rate, repay), floored at 0

GUARDS:
  Every input is validated. Invalid inputs are reported and either replaced
  (national rate -> 0.04, repayment time -> 5, assets -> 0, earnings -> 0)
  or abort the computation without mutating the ledger.
*/
package budget

import "math"

const (
	// FallbackNationalRate replaces an invalid national interest rate.
	FallbackNationalRate = 0.04

	// RepaymentSpread is the rate premium per year of repayment time.
	RepaymentSpread = 0.002

	// MaxInterest bounds a single interest charge.
	MaxInterest = 1e30

	minCompound = 0.0001
)

// compound is the continuous compounding factor e^(rate*time).
func compound(rate, time float64) float64 {
	return math.Exp(rate * time)
}

// InterestRate is the rate the city currently borrows at.
func (e *Engine) InterestRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interestRate()
}

func (e *Engine) interestRate() float64 {
	national := e.host.Economy.NationalInterestRate()
	if !isFinite(national) || national < 0 {
		e.reportFallback("interestRate", "nationalRate", national, FallbackNationalRate)
		national = FallbackNationalRate
	}

	if !isFinite(e.loanRepaymentTime) || e.loanRepaymentTime <= 0 {
		e.reportFallback("interestRate", "loanRepaymentTime", e.loanRepaymentTime, FallbackLoanRepaymentTime)
		e.loanRepaymentTime = FallbackLoanRepaymentTime
	}

	return national + RepaymentSpread*e.loanRepaymentTime
}

// applyInterest charges interest on a negative balance for duration years.
func (e *Engine) applyInterest(b *Budget, duration float64) {
	balance := b.Line[BudgetBalance]
	if !isFinite(balance) {
		e.report("applyInterest", "BudgetBalance", balance)
		return
	}

	rate := e.interestRate()
	if !isFinite(rate) || rate < 0 {
		e.report("applyInterest", "interestRate", rate)
		return
	}

	if balance >= 0 {
		return
	}

	interest := (compound(rate, duration) - 1) * -balance
	if !isFinite(interest) || math.Abs(interest) > MaxInterest {
		e.report("applyInterest", "interest", interest)
		return
	}
	e.transaction(b, LoanInterest, -interest)
}

// computeLOC sizes the line of credit of b from projected earnings.
func (e *Engine) computeLOC(b *Budget, earnings float64) {
	goodFaith := e.c(CGoodFaithLOC) * e.inflation()

	rate := e.interestRate()
	if !isFinite(rate) || rate < 0 {
		e.reportFallback("computeLOC", "interestRate", rate, goodFaith)
		b.Line[LineOfCredit] = goodFaith
		return
	}

	if !isFinite(earnings) {
		e.reportFallback("computeLOC", "earnings", earnings, 0)
		earnings = 0
	}

	assets := b.Line[Assets]
	if !isFinite(assets) {
		e.reportFallback("computeLOC", "Assets", assets, 0)
		assets = 0
		b.Line[Assets] = 0
	}

	repay := e.loanRepaymentTime
	denominator := compound(rate, repay)
	if !isFinite(denominator) || denominator < minCompound {
		e.reportFallback("computeLOC", "compound", denominator, goodFaith)
		b.Line[LineOfCredit] = goodFaith
		return
	}

	loc := (assets*e.c(CAssetLOC) + goodFaith + earnings) * repay / denominator
	if loc < 0 {
		loc = 0
	}
	if !isFinite(loc) {
		e.reportFallback("computeLOC", "LineOfCredit", loc, goodFaith)
		loc = goodFaith
	}
	b.Line[LineOfCredit] = loc
}
