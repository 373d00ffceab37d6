package savefile

import (
	"fmt"
	"math"

	"github.com/warp/treasury-engine/budget"
)

// Sanitize replaces every invalid value of a decoded state with its fallback
// and reports each replaced field exactly once.
//
//	tax rate outside [0,1]       default rate of that tax
//	repayment time <= 0          FallbackLoanRepaymentTime
//	legacy balance               StartingMoney
//	LineOfCredit                 good-faith line of credit
//	any other ledger line        0
//	control < 0                  1
//
// Non-finite values are always invalid. It returns the number of replaced
// fields.
func Sanitize(s *budget.State, fb budget.Fallbacks, rep budget.Reporter) int {
	sz := sanitizer{rep: rep}

	if s.TaxRates == nil {
		s.TaxRates = make(map[budget.Line]float64, len(budget.TaxLines))
	}
	for _, l := range budget.TaxLines {
		rate := s.TaxRates[l]
		if !finite(rate) || rate < 0 || rate > 1 {
			s.TaxRates[l] = sz.replace("taxRate["+l.String()+"]", rate, budget.DefaultTaxRate(l))
		}
	}

	if t := s.LoanRepaymentTime; !finite(t) || t <= 0 {
		s.LoanRepaymentTime = sz.replace("loanRepaymentTime", t, budget.FallbackLoanRepaymentTime)
	}

	if s.HasLegacyBalance && !finite(s.LegacyBalance) {
		s.LegacyBalance = sz.replace("balance", s.LegacyBalance, fb.StartingMoney)
	}

	for i := range s.History {
		sz.ledger(fmt.Sprintf("history[%d]", i), &s.History[i], fb)
	}
	sz.ledger("estimate", &s.Estimate, fb)
	sz.ledger("estimateNext", &s.EstimateNext, fb)

	return sz.count
}

type sanitizer struct {
	rep   budget.Reporter
	count int
}

func (sz *sanitizer) replace(field string, value, fallback float64) float64 {
	sz.count++
	if sz.rep != nil {
		sz.rep.Report(&budget.NumericError{
			Op:          "load",
			Field:       field,
			Value:       value,
			Fallback:    fallback,
			HasFallback: true,
			Err:         classify(value),
		})
	}
	return fallback
}

func (sz *sanitizer) ledger(prefix string, b *budget.Budget, fb budget.Fallbacks) {
	for i, v := range b.Line {
		if finite(v) {
			continue
		}
		l := budget.Line(i)
		fallback := 0.0
		if l == budget.LineOfCredit {
			fallback = fb.LineOfCredit
		}
		b.Line[i] = sz.replace(prefix+"."+l.String(), v, fallback)
	}
	for i, v := range b.Control {
		if !finite(v) || v < 0 {
			b.Control[i] = sz.replace(prefix+".Control["+budget.Line(i).String()+"]", v, 1)
		}
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func classify(v float64) error {
	if finite(v) {
		return budget.ErrOutOfDomain
	}
	return budget.ErrNonFinite
}
