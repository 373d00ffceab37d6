/*
projection.go - Per-tick update and the estimate ledgers

PURPOSE:
  Update is called once per simulation tick. It books this tick's revenue,
  maintenance and interest on the current ledger, then rebuilds the two
  estimate ledgers from scratch:

    estimate      current actuals + the rest of this year
    estimateNext  a full next year, starting from the projected balance

UPDATE SEQUENCE:
  1. Roll the year if the calendar moved past the current ledger
  2. Refresh the cached asset valuation (at most every quarter hour)
  3. runBudget(current, fraction of a year elapsed this tick)
  4. estimate = current lines, runBudget(estimate, yearRemaining)
  5. estimateNext = zero + assets + projected balance, runBudget(.., 1)
  6. Extrapolate run-rate lines (transit, repairs, fuel tax) from the
     year-to-date actuals into both estimates
  7. Size the line of credit from next year's projected earnings

KEY INSIGHT:
  Estimates go through the same transaction path as real money, so the
  cascade and validation apply to them, but they never touch statistics
  (only the current ledger does).
*/
package budget

import "math"

const (
	// assetRefreshHours is how often the city asset valuation is resampled.
	assetRefreshHours = 0.25

	// minYearElapsed guards run-rate extrapolation at the start of a year.
	minYearElapsed = 0.0001
)

// runRateLines are extrapolated from year-to-date actuals rather than
// simulated by runBudget.
var runRateLines = []Line{TransitIncome, TransitExpenses, RepairExpenses, FuelTaxIncome}

// Update advances the treasury by duration real seconds. A year closed by this
// tick is announced to the event sink after the engine is released.
func (e *Engine) Update(duration float64) {
	if closed, rolled := e.update(duration); rolled {
		e.host.Events.BudgetClosed(closed)
	}
}

func (e *Engine) update(duration float64) (closed Budget, rolled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clock := e.host.Clock
	cur, closed, rolled := e.rollYear()

	now := clock.Now()
	oneYear := clock.OneYear()
	yearDur := duration / clock.DayLength() / oneYear
	if !isFinite(yearDur) {
		e.reportFallback("update", "duration", yearDur, 0)
		yearDur = 0
	}
	yearFractional := now / oneYear
	yearRemaining := 1 - (yearFractional - math.Floor(yearFractional))
	e.yearDurationSum += yearDur

	if !e.assetSampled || now-e.lastAssetSample > clock.OneHour()*assetRefreshHours {
		e.assetValue = e.host.Economy.CityAssetValue()
		e.lastAssetSample = now
		e.assetSampled = true
	}
	if isFinite(e.assetValue) {
		cur.Line[Assets] = e.assetValue
	} else {
		e.reportFallback("update", "Assets", e.assetValue, 0)
		cur.Line[Assets] = 0
	}

	e.runBudget(cur, yearDur)

	e.estimate.clear()
	e.estimate.Flags = FlagValid | FlagEstimate
	e.estimate.Year = cur.Year
	e.estimate.Line = cur.Line
	e.runBudget(&e.estimate, yearRemaining)

	e.estimateNext.clear()
	e.estimateNext.Flags = FlagValid | FlagEstimate
	e.estimateNext.Year = cur.Year + 1
	e.estimateNext.Line[Assets] = cur.Line[Assets]
	e.estimateNext.Line[BudgetBalance] = e.estimate.Line[BudgetBalance]
	e.runBudget(&e.estimateNext, 1)

	if yearElapsed := 1 - yearRemaining; yearElapsed > minYearElapsed {
		for _, l := range runRateLines {
			annual := cur.Line[l] / yearElapsed
			e.transaction(&e.estimate, l, annual*yearRemaining)
			e.transaction(&e.estimateNext, l, annual)
		}
	}

	earnings := e.estimateNext.Line[TotalEarnings]
	e.computeLOC(cur, earnings)
	e.estimate.Line[LineOfCredit] = cur.Line[LineOfCredit]
	e.estimateNext.Line[LineOfCredit] = cur.Line[LineOfCredit]
	e.computeLOC(&e.estimateNext, earnings)
	return closed, rolled
}

// YearDurationSum is the fraction of a year accumulated since the current
// ledger opened.
func (e *Engine) YearDurationSum() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.yearDurationSum
}

// =============================================================================
// SHARED PER-TICK ROUTINE
// =============================================================================

// runBudget books duration years of recurring revenue and cost on b.
func (e *Engine) runBudget(b *Budget, duration float64) {
	stats := e.host.Stats
	city := stats.OurCity()

	e.host.Buildings.MakeBuildingPayments(lockedBooker{e}, b, duration)

	retailGDP := e.trailingRetailGDP(stats.TimeSeries(city, RetailTransactions))
	e.transaction(b, SalesTax, e.taxes.EffectiveRate(SalesTax)*retailGDP*duration)

	fines := stats.Statistic(city, Population) * e.c(CFinesPerPerson)
	fines += stats.Statistic(city, Businesses) * e.c(CFinesPerBusiness)
	fines *= e.taxes.EffectiveRate(FinesAndFeesIncome)
	e.transaction(b, FinesAndFeesIncome, duration*fines)

	parkLots := stats.Statistic(city, ParkLots)
	control := e.current().Control[RecreationExpenses]
	e.transaction(b, RecreationExpenses,
		-parkLots*duration*e.c(CParkLotMaint)*e.inflation()*control)

	e.applyInterest(b, duration)
}

// trailingRetailGDP sums the last year of the retail series.
func (e *Engine) trailingRetailGDP(series TimeSeries) float64 {
	if series.Step <= 0 || !isFinite(series.Step) {
		return 0
	}
	numSteps := int(e.host.Clock.OneYear() / series.Step)
	end := len(series.Values)
	start := end - numSteps
	if start < 0 {
		start = 0
	}
	var gdp float64
	for _, v := range series.Values[start:end] {
		gdp += v
	}
	return gdp
}
