/*
errors.go - Error types and the diagnostic sink

PURPOSE:
  The treasury never fails the host simulation. Anomalous numbers (NaN, Inf,
  out-of-domain rates) are rejected or replaced and reported through a
  Reporter; policy rejections are plain boolean results and are not reported.

ERROR CATEGORIES:
  1. Numeric validation - NumericError, always wraps ErrNonFinite or
     ErrOutOfDomain
  2. Policy setters    - ErrTaxLocked, ErrNotTaxLine, ErrInvalidRate, ...
  3. Lookups           - ErrBudgetNotFound (archives)

SEE ALSO:
  - transaction.go, interest.go: produce NumericError reports
  - savefile/sanitize.go: reports every sanitized field
*/
package budget

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNonFinite is wrapped by every report about a NaN or infinite value.
	ErrNonFinite = errors.New("non-finite value")

	// ErrOutOfDomain is wrapped by reports about finite values outside their
	// allowed range (negative rate, interest above the runaway limit, ...).
	ErrOutOfDomain = errors.New("value out of domain")

	ErrInvalidLine          = errors.New("invalid budget line")
	ErrNotTaxLine           = errors.New("line is not a tax line")
	ErrTaxLocked            = errors.New("tax rate is locked")
	ErrInvalidRate          = errors.New("tax rate must be within [0, 1]")
	ErrInvalidRepaymentTime = errors.New("loan repayment time must be finite and positive")
	ErrInvalidControl       = errors.New("budget control must be finite and non-negative")

	// ErrBudgetNotFound is returned by archives when no budget exists for a year.
	ErrBudgetNotFound = errors.New("budget not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NumericError describes a rejected or replaced numeric value.
type NumericError struct {
	Op    string // e.g. "transaction", "applyInterest", "load"
	Field string // e.g. "BudgetBalance", "taxRate[SalesTax]"
	Value float64

	// Fallback is the value that replaced Value, when one did.
	Fallback    float64
	HasFallback bool

	Err error // ErrNonFinite or ErrOutOfDomain
}

func (e *NumericError) Error() string {
	if e.HasFallback {
		return fmt.Sprintf("%s: invalid %s %v, using %v", e.Op, e.Field, e.Value, e.Fallback)
	}
	return fmt.Sprintf("%s: invalid %s %v", e.Op, e.Field, e.Value)
}

func (e *NumericError) Unwrap() error {
	if e.Err == nil {
		return ErrNonFinite
	}
	return e.Err
}

// =============================================================================
// REPORTER - Non-fatal diagnostic channel
// =============================================================================

// Reporter receives diagnostics. Implementations must not panic.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) { f(err) }

// LogReporter writes every report to a logrus logger at error level.
type LogReporter struct {
	Log logrus.FieldLogger
}

func (r LogReporter) Report(err error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	var ne *NumericError
	if errors.As(err, &ne) {
		fields := logrus.Fields{"op": ne.Op, "field": ne.Field, "value": ne.Value}
		if ne.HasFallback {
			fields["fallback"] = ne.Fallback
		}
		log.WithFields(fields).Error(ne.Unwrap().Error())
		return
	}
	log.WithError(err).Error("treasury diagnostic")
}

// CountingReporter records reports. It is safe for concurrent use, so ticks
// may report while another goroutine reads the count.
type CountingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *CountingReporter) Report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *CountingReporter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// Errors returns a copy of the reports, oldest first.
func (r *CountingReporter) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}
