package budget_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/budget/store"
	"github.com/warp/treasury-engine/sim"
)

// =============================================================================
// INTEREST AND CREDIT
// =============================================================================

func TestInterestRate_AddsRepaymentSpread(t *testing.T) {
	f := newFixture(t, func(p *sim.Profile) { p.NationalRate = 0.048 })

	assert.InDelta(t, 0.05, f.engine.InterestRate(), 1e-12)

	require.NoError(t, f.engine.SetLoanRepaymentTime(10))
	assert.InDelta(t, 0.068, f.engine.InterestRate(), 1e-12)
}

func TestInterestRate_InvalidNationalRateFallsBack(t *testing.T) {
	f := newFixture(t, func(p *sim.Profile) { p.NationalRate = math.NaN() })

	assert.InDelta(t, budget.FallbackNationalRate+budget.RepaymentSpread, f.engine.InterestRate(), 1e-12)
	assert.Equal(t, 1, f.reports.Count())
}

func TestUpdate_ChargesCompoundInterestOnDebt(t *testing.T) {
	// GIVEN: A balance of -1000 borrowing at 5%
	// WHEN: One full year passes in a single tick
	// THEN: Interest of (e^0.05 - 1) * 1000 is booked as a mandatory expense

	f := newFixture(t, func(p *sim.Profile) { p.NationalRate = 0.048 })
	require.True(t, f.engine.ForceTransaction(budget.RoadBuildExpenses, -1500))
	require.Equal(t, -1000.0, f.engine.Current().Balance())

	f.engine.Update(oneYear)

	b := f.engine.Current()
	want := (math.Exp(0.05) - 1) * 1000
	assert.InDelta(t, 51.27, want, 0.01)
	assert.InDelta(t, -want, b.Line[budget.LoanInterest], 1e-9)
	assert.InDelta(t, -1000-want, b.Balance(), 1e-9)
	assert.InDelta(t, -want, b.Line[budget.TotalMandatory], 1e-9)
}

func TestUpdate_NoInterestOnPositiveBalance(t *testing.T) {
	f := newFixture(t, func(p *sim.Profile) { p.NationalRate = 0.048 })

	f.engine.Update(oneYear)

	assert.Zero(t, f.engine.Current().Line[budget.LoanInterest])
	assert.Equal(t, 500.0, f.engine.Current().Balance())
}

func TestUpdate_NonFiniteBalanceSkipsInterest(t *testing.T) {
	f := newFixture(t)
	f.engine.Current()
	s := f.engine.State()
	s.History[0].Line[budget.BudgetBalance] = math.Inf(-1)
	f.engine.Restore(s, 59, 58)

	f.engine.Update(oneYear)

	assert.Zero(t, f.engine.Current().Line[budget.LoanInterest])
	assert.GreaterOrEqual(t, f.reports.Count(), 1)
}

func TestUpdate_SizesLineOfCredit(t *testing.T) {
	// GIVEN: 5000 of city assets and no projected earnings
	// WHEN: The engine updates
	// THEN: LOC = (assets*0.1 + good faith) * repay / e^(rate*repay)

	f := newFixture(t, func(p *sim.Profile) {
		p.AssetValue = 5000
		p.NationalRate = 0.03
	})

	f.engine.Update(0)

	want := (5000*0.1 + 100) * 1 / math.Exp(0.032)
	assert.InDelta(t, want, f.engine.Current().Line[budget.LineOfCredit], 1e-9)
	assert.InDelta(t, want, f.engine.Budget(1).Line[budget.LineOfCredit], 1e-9)
	assert.InDelta(t, want, f.engine.Budget(2).Line[budget.LineOfCredit], 1e-9)
	assert.InDelta(t, 500+want, f.engine.Credit(), 1e-9)
}

func TestUpdate_LineOfCreditFlooredAtZero(t *testing.T) {
	// GIVEN: Heavy projected losses from park maintenance
	// WHEN: The engine updates
	// THEN: The line of credit is 0, never negative

	f := newFixture(t, func(p *sim.Profile) { p.ParkLots = 1e6 })

	f.engine.Update(0)

	assert.Zero(t, f.engine.Current().Line[budget.LineOfCredit])
}

func TestSetLoanRepaymentTime_RejectsInvalid(t *testing.T) {
	f := newFixture(t)

	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, f.engine.SetLoanRepaymentTime(v), budget.ErrInvalidRepaymentTime)
	}
	assert.Equal(t, budget.DefaultLoanRepaymentTime, f.engine.LoanRepaymentTime())
}

// =============================================================================
// ASSET VALUATION CACHE
// =============================================================================

func TestUpdate_AssetValueSampledAtMostEveryQuarterHour(t *testing.T) {
	f := newFixture(t, func(p *sim.Profile) { p.AssetValue = 10 })

	f.engine.Update(0)
	f.engine.Update(0)
	assert.Equal(t, 1, f.city.AssetValueCalls())

	f.city.SetTime(0.5 / sim.HoursPerDay)
	f.engine.Update(0)
	assert.Equal(t, 2, f.city.AssetValueCalls())
	assert.Equal(t, 10.0, f.engine.Current().Line[budget.Assets])
}

// =============================================================================
// YEAR ROLLOVER
// =============================================================================

func TestUpdate_RollsYearOnce(t *testing.T) {
	// GIVEN: A treasury with a year of activity and a reduced parks budget
	// WHEN: The calendar passes into the next year and several ticks run
	// THEN: Exactly one ledger is closed, the balance and controls carry over,
	//       and listeners hear about it once

	f := newFixture(t)
	require.True(t, f.engine.ForceTransaction(budget.RoadBuildExpenses, -100))
	require.NoError(t, f.engine.SetBudgetControl(budget.RecreationExpenses, 0.5))
	f.engine.Update(0)

	f.city.SetTime(sim.DaysPerYear + 1)
	f.engine.Update(0)
	f.engine.Update(0)

	history := f.engine.History()
	require.Len(t, history, 2)
	assert.Equal(t, 1, f.engine.NumHistoricalBudgets())

	closed := history[0]
	assert.Equal(t, 0, closed.Year)
	assert.True(t, closed.IsValid())
	assert.False(t, closed.IsYearToDate())
	assert.Equal(t, 400.0, closed.Balance())

	cur := history[1]
	assert.Equal(t, 1, cur.Year)
	assert.True(t, cur.IsYearToDate())
	assert.Equal(t, 400.0, cur.Balance())
	assert.Zero(t, cur.Line[budget.RoadBuildExpenses])
	assert.Equal(t, 0.5, cur.Control[budget.RecreationExpenses])

	require.Equal(t, 1, f.events.Len())
	assert.Equal(t, closed, f.events.Closed()[0])
	assert.Zero(t, f.engine.YearDurationSum())
}

func TestUpdate_ArchivesClosedYear(t *testing.T) {
	f := newFixture(t)
	archive := store.NewMemory()
	sink := &budget.ArchivingSink{Archive: archive, Next: f.events}

	host := f.city.Host(f.consts, sink)
	host.Reporter = f.reports
	engine := budget.New(host)
	engine.Update(0)

	f.city.SetTime(sim.DaysPerYear)
	engine.Update(0)

	got, err := archive.Budget(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Balance())
	assert.Equal(t, 1, archive.Len())
	assert.Equal(t, 1, f.events.Len())

	_, err = archive.Budget(context.Background(), 1)
	assert.ErrorIs(t, err, budget.ErrBudgetNotFound)
}

// readingSink reads the engine from inside the budget-closed event.
type readingSink struct {
	engine  *budget.Engine
	history []int
}

func (s *readingSink) BudgetClosed(closed budget.Budget) {
	s.history = append(s.history, s.engine.NumHistoricalBudgets())
}

func TestUpdate_EventSinkMayReadEngine(t *testing.T) {
	// GIVEN: A listener that queries the engine when a year closes
	// WHEN: The calendar passes into the next year
	// THEN: The listener runs without deadlocking and sees the new year open

	f := newFixture(t)
	sink := &readingSink{}
	host := f.city.Host(f.consts, sink)
	host.Reporter = f.reports
	sink.engine = budget.New(host)
	sink.engine.Update(0)

	f.city.SetTime(sim.DaysPerYear)
	done := make(chan struct{})
	go func() {
		sink.engine.Update(0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Update blocked while notifying the event sink")
	}
	assert.Equal(t, []int{1}, sink.history)
}

// =============================================================================
// RELATIVE YEARS
// =============================================================================

func TestBudget_RelativeYears(t *testing.T) {
	f := newFixture(t)
	f.engine.Update(0)
	f.city.SetTime(2*sim.DaysPerYear + 10)
	f.engine.Update(0)

	tests := []struct {
		name    string
		rel     int
		year    int
		flags   budget.BudgetFlags
		goodLOC bool
	}{
		{"current", 0, 2, budget.FlagYearToDate | budget.FlagValid, false},
		{"last year", -1, 0, budget.FlagValid, false},
		{"before history", -2, 0, 0, true},
		{"rest of year", 1, 2, budget.FlagValid | budget.FlagEstimate, false},
		{"next year", 2, 3, budget.FlagValid | budget.FlagEstimate, false},
		{"far future", 5, 6, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := f.engine.Budget(tt.rel)
			assert.Equal(t, tt.year, b.Year)
			assert.Equal(t, tt.flags, b.Flags)
			if tt.goodLOC {
				assert.Equal(t, 100.0, b.Line[budget.LineOfCredit])
			}
		})
	}
}

func TestBudget_ReturnsSnapshots(t *testing.T) {
	f := newFixture(t)
	snap := f.engine.Budget(0)
	snap.Line[budget.BudgetBalance] = 1e9

	assert.Equal(t, 500.0, f.engine.Budget(0).Balance())
}

// =============================================================================
// ESTIMATES
// =============================================================================

func TestUpdate_ProjectsRevenueForRestOfYearAndNextYear(t *testing.T) {
	// GIVEN: Property, sales and fines income plus park maintenance, at day 0
	// WHEN: The engine updates without advancing
	// THEN: Both estimates book one year of each, and the current ledger is
	//       untouched

	f := newFixture(t, func(p *sim.Profile) {
		p.AssessedValue = 40000
		p.Population = 1000
		p.ParkLots = 10
	})
	f.city.SetRetailSeries(budget.TimeSeries{Step: 73, Values: []float64{99, 10, 10, 10, 10, 10}})
	require.NoError(t, f.engine.SetTaxRate(budget.SalesTax, 0.02))
	require.NoError(t, f.engine.SetTaxRate(budget.FinesAndFeesIncome, 0.5))
	require.NoError(t, f.engine.EnableTax(budget.FinesAndFeesIncome))

	f.engine.Update(0)

	cur := f.engine.Current()
	assert.Zero(t, cur.Line[budget.PropertyTax])
	assert.Equal(t, 500.0, cur.Balance())

	for _, rel := range []int{1, 2} {
		b := f.engine.Budget(rel)
		assert.InDelta(t, 400, b.Line[budget.PropertyTax], 1e-9, "year %d", rel)
		assert.InDelta(t, 1.0, b.Line[budget.SalesTax], 1e-9, "year %d", rel)
		assert.InDelta(t, 10, b.Line[budget.FinesAndFeesIncome], 1e-9, "year %d", rel)
		assert.InDelta(t, -4, b.Line[budget.RecreationExpenses], 1e-9, "year %d", rel)
	}

	est := f.engine.Budget(1)
	assert.InDelta(t, 500+407, est.Balance(), 1e-9)
	assert.InDelta(t, 500+2*407, f.engine.Budget(2).Balance(), 1e-9)
	assert.InDelta(t, 407, f.engine.Earnings(), 1e-9)
}

func TestUpdate_ParkControlScalesMaintenance(t *testing.T) {
	f := newFixture(t, func(p *sim.Profile) { p.ParkLots = 10 })
	require.NoError(t, f.engine.SetBudgetControl(budget.RecreationExpenses, 0.5))

	f.engine.Update(oneYear)

	assert.InDelta(t, -2, f.engine.Current().Line[budget.RecreationExpenses], 1e-9)
	assert.InDelta(t, 0.25, f.engine.BudgetControlEffect(budget.RecreationExpenses), 1e-12)
}

func TestUpdate_ExtrapolatesRunRateLines(t *testing.T) {
	// GIVEN: Half a year elapsed with 5 of transit income booked
	// WHEN: The engine updates
	// THEN: The rest of the year adds 5 more, next year projects 10

	f := newFixture(t)
	f.city.SetTime(sim.DaysPerYear / 2)
	require.True(t, f.engine.ForceTransaction(budget.TransitIncome, 5))

	f.engine.Update(0)

	assert.InDelta(t, 10, f.engine.Budget(1).Line[budget.TransitIncome], 1e-9)
	assert.InDelta(t, 10, f.engine.Budget(2).Line[budget.TransitIncome], 1e-9)
}

func TestUpdate_AccumulatesYearDuration(t *testing.T) {
	f := newFixture(t)

	f.engine.Update(oneYear / 4)
	f.engine.Update(oneYear / 4)

	assert.InDelta(t, 0.5, f.engine.YearDurationSum(), 1e-12)
}

// =============================================================================
// CONTROLS
// =============================================================================

func TestSetBudgetControl_Validates(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.engine.SetBudgetControl(budget.Line(99), 1), budget.ErrInvalidLine)
	assert.ErrorIs(t, f.engine.SetBudgetControl(budget.EducationExpenses, -0.1), budget.ErrInvalidControl)
	assert.ErrorIs(t, f.engine.SetBudgetControl(budget.EducationExpenses, math.NaN()), budget.ErrInvalidControl)

	require.NoError(t, f.engine.SetBudgetControl(budget.EducationExpenses, 1.5))
	assert.Equal(t, 1.5, f.engine.BudgetControl(budget.EducationExpenses))
	assert.Equal(t, 1.0, f.engine.BudgetControl(budget.Line(99)))
}

// =============================================================================
// RESET AND STATE
// =============================================================================

func TestReset_RestoresInitialState(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.engine.ForceTransaction(budget.RoadBuildExpenses, -100))
	require.NoError(t, f.engine.SetTaxRate(budget.SalesTax, 0.3))
	require.NoError(t, f.engine.LockTax(budget.PropertyTax))
	require.NoError(t, f.engine.SetLoanRepaymentTime(8))

	f.engine.Reset()

	assert.Equal(t, 500.0, f.engine.Current().Balance())
	assert.Equal(t, 0.0, f.engine.TaxRate(budget.SalesTax))
	assert.Equal(t, 0.01, f.engine.TaxRate(budget.PropertyTax))
	assert.False(t, f.engine.IsTaxLocked(budget.PropertyTax))
	assert.Equal(t, budget.DefaultLoanRepaymentTime, f.engine.LoanRepaymentTime())
	assert.Equal(t, 0, f.engine.NumHistoricalBudgets())
}

func TestState_IsDeepCopy(t *testing.T) {
	f := newFixture(t)
	f.engine.Current()
	s := f.engine.State()
	s.History[0].Line[budget.BudgetBalance] = 1
	s.TaxRates[budget.PropertyTax] = 0.9

	assert.Equal(t, 500.0, f.engine.Current().Balance())
	assert.Equal(t, 0.01, f.engine.TaxRate(budget.PropertyTax))
}

func TestRestore_LegacyBalance(t *testing.T) {
	f := newFixture(t)
	f.engine.Update(0)
	f.city.SetTime(sim.DaysPerYear)
	f.engine.Update(0)

	s := f.engine.State()
	s.HasLegacyBalance = true
	s.LegacyBalance = 1234
	f.engine.Restore(s, 20, 58)

	assert.Equal(t, 0, f.engine.NumHistoricalBudgets())
	assert.Equal(t, 1234.0, f.engine.Current().Balance())
}

func TestRestore_OldFileOutsideGameModeResets(t *testing.T) {
	f := newFixture(t, withMode(budget.ModeDesigner))
	require.True(t, f.engine.ForceTransaction(budget.SalesTax, 50))
	s := f.engine.State()

	f.engine.Restore(s, 58, 58)
	assert.Equal(t, 500.0, f.engine.Current().Balance())

	f.engine.Restore(s, 59, 58)
	assert.Equal(t, 550.0, f.engine.Current().Balance())
}
