/*
codec.go - Treasury section encoding

PURPOSE:
  Reads and writes the treasury section of a save file for any supported
  version. Decoding fills version-dependent defaults for absent fields but
  does not validate values; Sanitize does that in one pass afterwards.

SECTION LAYOUT (little endian):
  [>=28] float32 rate PropertyTax, SalesTax, FinesAndFees
         float32 loan repayment time
  [>=21] int32 count, count x ledger, ledger estimate
         [>=51] ledger estimateNext
  [<21]  money current balance

  ledger: int32 year, int32 flags, then per line: money amount,
          [>=51] float32 control

  money is float32 before version 23 and float64 from then on. Rates,
  repayment time and controls stay float32 at every version.

  The fuel-tax rate has no slot of its own; it travels in
  estimate.Control[FuelTaxIncome].

SEE ALSO:
  - fields.go: version table
  - sanitize.go: validation and fallbacks
*/
package savefile

import (
	"errors"
	"fmt"
	"io"

	"github.com/warp/treasury-engine/budget"
)

var (
	ErrBadMagic           = errors.New("not a treasury save file")
	ErrUnsupportedVersion = errors.New("unsupported save file version")
	ErrTruncated          = errors.New("save file truncated")
	ErrCorrupt            = errors.New("save file corrupt")
)

// maxHistory bounds the ledger count accepted from a file.
const maxHistory = 1 << 16

// storedRateLines have a dedicated rate slot in the file.
var storedRateLines = []budget.Line{budget.PropertyTax, budget.SalesTax, budget.FinesAndFeesIncome}

// legacyTaxRate is the rate of every tax in files that predate tax rates.
const legacyTaxRate = 0.01

// =============================================================================
// DECODE
// =============================================================================

// Decode reads a treasury section written at version. startYear converts
// absolute years of old files into offsets.
func Decode(r io.Reader, version int, startYear float64) (budget.State, error) {
	if !supported(version) {
		return budget.State{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	rd := &reader{r: r}
	s := budget.State{TaxRates: make(map[budget.Line]float64, len(budget.TaxLines))}

	if has(fieldTaxRates, version) {
		for _, l := range storedRateLines {
			s.TaxRates[l] = float64(rd.float32())
		}
		s.TaxRates[budget.FuelTaxIncome] = budget.DefaultTaxRate(budget.FuelTaxIncome)
		s.LoanRepaymentTime = float64(rd.float32())
	} else {
		for _, l := range budget.TaxLines {
			s.TaxRates[l] = legacyTaxRate
		}
		s.LoanRepaymentTime = budget.FallbackLoanRepaymentTime
	}

	if !has(fieldHistory, version) {
		s.LegacyBalance = rd.money(version)
		s.HasLegacyBalance = true
		return s, rd.err
	}

	count := rd.int32()
	if rd.err != nil {
		return budget.State{}, rd.err
	}
	if count < 0 || count > maxHistory {
		return budget.State{}, fmt.Errorf("%w: history length %d", ErrCorrupt, count)
	}
	s.History = make([]budget.Budget, count)
	for i := range s.History {
		s.History[i] = readLedger(rd, version, startYear)
	}
	s.Estimate = readLedger(rd, version, startYear)
	if has(fieldEstimateNext, version) {
		s.EstimateNext = readLedger(rd, version, startYear)
	} else {
		s.EstimateNext = budget.NewBudget(0, 0)
	}

	if has(fieldControls, version) {
		s.TaxRates[budget.FuelTaxIncome] = s.Estimate.Control[budget.FuelTaxIncome]
		s.Estimate.Control[budget.FuelTaxIncome] = 1
	}

	if rd.err != nil {
		return budget.State{}, rd.err
	}
	return s, nil
}

func readLedger(rd *reader, version int, startYear float64) budget.Budget {
	year := int(rd.int32())
	if !has(fieldYearOffset, version) {
		year -= int(startYear)
	}
	b := budget.NewBudget(year, budget.BudgetFlags(rd.int32()))
	controls := has(fieldControls, version)
	for l := range b.Line {
		b.Line[l] = rd.money(version)
		if controls {
			b.Control[l] = float64(rd.float32())
		}
	}
	return b
}

// =============================================================================
// ENCODE
// =============================================================================

// Encode writes s as a treasury section of the given version. Writing
// versions other than CurrentVersion exists for migration tooling and tests.
func Encode(w io.Writer, s budget.State, version int, startYear float64) error {
	if !supported(version) {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	wr := &writer{w: w}

	if has(fieldTaxRates, version) {
		for _, l := range storedRateLines {
			wr.float32(float32(s.TaxRates[l]))
		}
		wr.float32(float32(s.LoanRepaymentTime))
	}

	if !has(fieldHistory, version) {
		balance := s.LegacyBalance
		if !s.HasLegacyBalance && len(s.History) > 0 {
			balance = s.History[len(s.History)-1].Line[budget.BudgetBalance]
		}
		wr.money(version, balance)
		return wr.err
	}

	wr.int32(int32(len(s.History)))
	for _, b := range s.History {
		writeLedger(wr, b, version, startYear)
	}

	estimate := s.Estimate
	if has(fieldControls, version) {
		estimate.Control[budget.FuelTaxIncome] = s.TaxRates[budget.FuelTaxIncome]
	}
	writeLedger(wr, estimate, version, startYear)
	if has(fieldEstimateNext, version) {
		writeLedger(wr, s.EstimateNext, version, startYear)
	}
	return wr.err
}

func writeLedger(wr *writer, b budget.Budget, version int, startYear float64) {
	year := b.Year
	if !has(fieldYearOffset, version) {
		year += int(startYear)
	}
	wr.int32(int32(year))
	wr.int32(int32(b.Flags))
	controls := has(fieldControls, version)
	for l, v := range b.Line {
		wr.money(version, v)
		if controls {
			wr.float32(float32(b.Control[l]))
		}
	}
}
