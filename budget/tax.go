/*
tax.go - Tax policy store

PURPOSE:
  Tracks, for each tax line, the policy-chosen rate, whether the tax is
  enabled, and whether it has been locked at a punitive rate.

RULES:
  - The effective rate of a disabled tax is 0, whatever the stored rate.
  - Locking forces the punitive rate and is terminal for that tax until
    UnlockTaxes; a locked rate cannot be changed.
  - Defaults: property tax 1% and enabled, sales tax enabled at 0%, fines and
    fuel tax disabled.
*/
package budget

// TaxLines lists the lines that carry a tax policy.
var TaxLines = []Line{PropertyTax, SalesTax, FinesAndFeesIncome, FuelTaxIncome}

const (
	// PunitiveTaxRate is forced on a tax when it is locked.
	PunitiveTaxRate = 0.04

	numTaxSlots = int(FuelTaxIncome) + 1
)

// IsTaxLine reports whether l carries a tax policy.
func IsTaxLine(l Line) bool { return l >= PropertyTax && l <= FuelTaxIncome }

// DefaultTaxRate is the reset value of a tax rate, also used as the fallback
// for a corrupt rate in a save file.
func DefaultTaxRate(l Line) float64 {
	if l == PropertyTax {
		return 0.01
	}
	return 0
}

// TaxPolicy is the tax state. The zero value is not the default policy; use
// DefaultTaxPolicy.
type TaxPolicy struct {
	rate    [numTaxSlots]float64
	enabled [numTaxSlots]bool
	locked  [numTaxSlots]bool
}

func DefaultTaxPolicy() TaxPolicy {
	var p TaxPolicy
	for _, l := range TaxLines {
		p.rate[l] = DefaultTaxRate(l)
		p.enabled[l] = l == PropertyTax || l == SalesTax
	}
	return p
}

// Rate is the stored rate, ignoring whether the tax is enabled.
func (p *TaxPolicy) Rate(l Line) float64 {
	if !IsTaxLine(l) {
		return 0
	}
	return p.rate[l]
}

// EffectiveRate is 0 when the tax is disabled.
func (p *TaxPolicy) EffectiveRate(l Line) float64 {
	if !IsTaxLine(l) || !p.enabled[l] {
		return 0
	}
	return p.rate[l]
}

func (p *TaxPolicy) SetRate(l Line, rate float64) error {
	if !IsTaxLine(l) {
		return ErrNotTaxLine
	}
	if p.locked[l] {
		return ErrTaxLocked
	}
	if !isFinite(rate) || rate < 0 || rate > 1 {
		return ErrInvalidRate
	}
	p.rate[l] = rate
	return nil
}

func (p *TaxPolicy) Enabled(l Line) bool { return IsTaxLine(l) && p.enabled[l] }
func (p *TaxPolicy) Locked(l Line) bool  { return IsTaxLine(l) && p.locked[l] }

func (p *TaxPolicy) SetEnabled(l Line, enabled bool) error {
	if !IsTaxLine(l) {
		return ErrNotTaxLine
	}
	p.enabled[l] = enabled
	return nil
}

// Lock forces the punitive rate onto l.
func (p *TaxPolicy) Lock(l Line) error {
	if !IsTaxLine(l) {
		return ErrNotTaxLine
	}
	p.rate[l] = PunitiveTaxRate
	p.locked[l] = true
	return nil
}

func (p *TaxPolicy) UnlockAll() {
	for i := range p.locked {
		p.locked[i] = false
	}
}

// restoreRate bypasses the lock; used when loading a save.
func (p *TaxPolicy) restoreRate(l Line, rate float64) {
	if IsTaxLine(l) {
		p.rate[l] = rate
	}
}

// =============================================================================
// ENGINE ACCESSORS
// =============================================================================

func (e *Engine) TaxRate(l Line) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taxes.Rate(l)
}

// EffectiveTaxRate is the rate actually charged: 0 when the tax is disabled.
func (e *Engine) EffectiveTaxRate(l Line) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taxes.EffectiveRate(l)
}

func (e *Engine) SetTaxRate(l Line, rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.taxes.SetRate(l, rate)
}

func (e *Engine) IsTaxEnabled(l Line) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taxes.Enabled(l)
}

func (e *Engine) IsTaxLocked(l Line) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taxes.Locked(l)
}

func (e *Engine) EnableTax(l Line) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.taxes.SetEnabled(l, true); err != nil {
		return err
	}
	e.host.Log.WithField("line", l.String()).Info("Enabling tax")
	return nil
}

func (e *Engine) DisableTax(l Line) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.taxes.SetEnabled(l, false); err != nil {
		return err
	}
	e.host.Log.WithField("line", l.String()).Info("Disabling tax")
	return nil
}

// LockTax forces the punitive rate onto l until UnlockTaxes.
func (e *Engine) LockTax(l Line) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.taxes.Lock(l); err != nil {
		return err
	}
	e.host.Log.WithField("line", l.String()).Info("Locking tax")
	return nil
}

func (e *Engine) UnlockTaxes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.taxes.UnlockAll()
}

// TaxPolicy returns a copy of the tax state.
func (e *Engine) TaxPolicy() TaxPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.taxes
}
