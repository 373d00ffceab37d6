package savefile_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/savefile"
	"github.com/warp/treasury-engine/sim"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEngine struct {
	engine  *budget.Engine
	city    *sim.City
	reports *budget.CountingReporter
}

func newTestEngine(t *testing.T, mode budget.Mode) testEngine {
	t.Helper()

	profile := sim.DefaultProfile()
	profile.DayLength = 1
	profile.Mode = mode
	city := sim.NewCity(profile)

	log := logrus.New()
	log.SetOutput(io.Discard)

	reports := &budget.CountingReporter{}
	host := city.Host(sim.DefaultConstants(), nil)
	host.Reporter = reports
	host.Log = log
	return testEngine{engine: budget.New(host), city: city, reports: reports}
}

// played returns an engine with two years of history and non-default policy.
// Rates and controls are exact in float32 so they survive the file unchanged.
func played(t *testing.T) testEngine {
	t.Helper()
	te := newTestEngine(t, budget.ModeGame)
	e := te.engine

	require.NoError(t, e.SetTaxRate(budget.PropertyTax, 0.015625))
	require.NoError(t, e.SetTaxRate(budget.SalesTax, 0.0625))
	require.NoError(t, e.SetTaxRate(budget.FinesAndFeesIncome, 0.25))
	require.NoError(t, e.SetTaxRate(budget.FuelTaxIncome, 0.03125))
	require.NoError(t, e.SetLoanRepaymentTime(7))
	require.NoError(t, e.SetBudgetControl(budget.EducationExpenses, 1.25))
	require.True(t, e.ForceTransaction(budget.RoadBuildExpenses, -120))

	te.city.Advance(100)
	e.Update(100)
	te.city.Advance(300)
	e.Update(300)
	require.Equal(t, 1, e.NumHistoricalBudgets())
	return te
}

func frame(t *testing.T, version int, s budget.State) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, savefile.WriteHeader(&buf, version))
	require.NoError(t, savefile.Encode(&buf, s, version, 1950))
	return buf.Bytes()
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestSaveLoad_RoundTrip(t *testing.T) {
	// GIVEN: An engine with history, tax changes, controls and estimates
	// WHEN: It is saved and loaded into a fresh engine
	// THEN: The persisted state is identical and nothing is reported

	src := played(t)
	data, err := savefile.Marshal(src.engine)
	require.NoError(t, err)

	dst := newTestEngine(t, budget.ModeGame)
	version, err := savefile.Unmarshal(data, dst.engine)
	require.NoError(t, err)

	assert.Equal(t, savefile.CurrentVersion, version)
	assert.Equal(t, src.engine.State(), dst.engine.State())
	assert.Equal(t, 0.03125, dst.engine.TaxRate(budget.FuelTaxIncome))
	assert.Equal(t, 1.25, dst.engine.BudgetControl(budget.EducationExpenses))
	assert.Zero(t, dst.reports.Count())
}

func TestSaveLoad_FileRoundTrip(t *testing.T) {
	src := played(t)
	path := filepath.Join(t.TempDir(), "city.trsy")

	require.NoError(t, savefile.WriteFile(path, src.engine))

	dst := newTestEngine(t, budget.ModeGame)
	version, err := savefile.ReadFile(path, dst.engine)
	require.NoError(t, err)
	assert.Equal(t, savefile.CurrentVersion, version)
	assert.Equal(t, src.engine.History(), dst.engine.History())
}

func TestReadFile_Missing(t *testing.T) {
	dst := newTestEngine(t, budget.ModeGame)
	_, err := savefile.ReadFile(filepath.Join(t.TempDir(), "nope"), dst.engine)
	assert.Error(t, err)
}

// =============================================================================
// SANITIZATION
// =============================================================================

func TestLoad_NaNBalanceReplacedAndReportedOnce(t *testing.T) {
	// GIVEN: A file whose current balance is NaN
	// WHEN: It is loaded
	// THEN: The balance is 0 and exactly one report names it

	src := newTestEngine(t, budget.ModeGame)
	src.engine.Update(0)
	s := src.engine.State()
	s.History[0].Line[budget.BudgetBalance] = math.NaN()

	dst := newTestEngine(t, budget.ModeGame)
	_, err := savefile.Unmarshal(frame(t, savefile.CurrentVersion, s), dst.engine)
	require.NoError(t, err)

	assert.Equal(t, 0.0, dst.engine.Current().Balance())
	require.Equal(t, 1, dst.reports.Count())

	var ne *budget.NumericError
	require.ErrorAs(t, dst.reports.Errors()[0], &ne)
	assert.Equal(t, "load", ne.Op)
	assert.Equal(t, "history[0].BudgetBalance", ne.Field)
	assert.True(t, ne.HasFallback)
	assert.ErrorIs(t, dst.reports.Errors()[0], budget.ErrNonFinite)
}

func TestSanitize_Fallbacks(t *testing.T) {
	fb := budget.Fallbacks{StartingMoney: 500, LineOfCredit: 100, StartYear: 1950}

	tests := []struct {
		name   string
		mutate func(s *budget.State)
		check  func(t *testing.T, s budget.State)
	}{
		{
			name:   "tax rate above one",
			mutate: func(s *budget.State) { s.TaxRates[budget.PropertyTax] = 3 },
			check: func(t *testing.T, s budget.State) {
				assert.Equal(t, 0.01, s.TaxRates[budget.PropertyTax])
			},
		},
		{
			name:   "negative repayment time",
			mutate: func(s *budget.State) { s.LoanRepaymentTime = -2 },
			check: func(t *testing.T, s budget.State) {
				assert.Equal(t, budget.FallbackLoanRepaymentTime, s.LoanRepaymentTime)
			},
		},
		{
			name:   "infinite line of credit",
			mutate: func(s *budget.State) { s.Estimate.Line[budget.LineOfCredit] = math.Inf(1) },
			check: func(t *testing.T, s budget.State) {
				assert.Equal(t, 100.0, s.Estimate.Line[budget.LineOfCredit])
			},
		},
		{
			name:   "negative control",
			mutate: func(s *budget.State) { s.History[0].Control[budget.EducationExpenses] = -1 },
			check: func(t *testing.T, s budget.State) {
				assert.Equal(t, 1.0, s.History[0].Control[budget.EducationExpenses])
			},
		},
		{
			name: "legacy balance",
			mutate: func(s *budget.State) {
				s.HasLegacyBalance = true
				s.LegacyBalance = math.NaN()
			},
			check: func(t *testing.T, s budget.State) {
				assert.Equal(t, 500.0, s.LegacyBalance)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := budget.State{
				TaxRates: map[budget.Line]float64{
					budget.PropertyTax: 0.01, budget.SalesTax: 0,
					budget.FinesAndFeesIncome: 0, budget.FuelTaxIncome: 0,
				},
				LoanRepaymentTime: 1,
				History:           []budget.Budget{budget.NewBudget(0, budget.FlagValid)},
				Estimate:          budget.NewBudget(0, 0),
				EstimateNext:      budget.NewBudget(1, 0),
			}
			tt.mutate(&s)

			reports := &budget.CountingReporter{}
			n := savefile.Sanitize(&s, fb, reports)

			assert.Equal(t, 1, n)
			assert.Equal(t, 1, reports.Count())
			tt.check(t, s)
		})
	}
}

func TestLoad_InvalidFuelRateInControlSlot(t *testing.T) {
	src := newTestEngine(t, budget.ModeGame)
	src.engine.Update(0)
	s := src.engine.State()
	s.TaxRates[budget.FuelTaxIncome] = 2

	dst := newTestEngine(t, budget.ModeGame)
	_, err := savefile.Unmarshal(frame(t, savefile.CurrentVersion, s), dst.engine)
	require.NoError(t, err)

	assert.Zero(t, dst.engine.TaxRate(budget.FuelTaxIncome))
	assert.Equal(t, 1.0, dst.engine.Budget(1).Control[budget.FuelTaxIncome])
	require.Equal(t, 1, dst.reports.Count())
	assert.ErrorIs(t, dst.reports.Errors()[0], budget.ErrOutOfDomain)
}

// =============================================================================
// LEGACY VERSIONS
// =============================================================================

func TestLoad_PreHistoryVersion(t *testing.T) {
	// GIVEN: A version 20 file holding only a float32 balance
	// WHEN: It is loaded
	// THEN: Every tax is 1%, repayment time is 5, and the balance is restored

	var buf bytes.Buffer
	require.NoError(t, savefile.WriteHeader(&buf, 20))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, float32(1234)))

	dst := newTestEngine(t, budget.ModeGame)
	version, err := savefile.Unmarshal(buf.Bytes(), dst.engine)
	require.NoError(t, err)

	assert.Equal(t, 20, version)
	assert.Equal(t, 1234.0, dst.engine.Current().Balance())
	assert.Equal(t, 0, dst.engine.NumHistoricalBudgets())
	for _, l := range budget.TaxLines {
		assert.Equal(t, 0.01, dst.engine.TaxRate(l), l.String())
	}
	assert.Equal(t, budget.FallbackLoanRepaymentTime, dst.engine.LoanRepaymentTime())
}

func TestDecode_VersionedFields(t *testing.T) {
	src := played(t)
	s := src.engine.State()

	tests := []struct {
		version      int
		wantRates    bool
		wantControls bool
	}{
		{22, false, false},
		{27, false, false},
		{28, true, false},
		{49, true, false},
		{50, true, false},
		{51, true, true},
		{savefile.CurrentVersion, true, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("v%d", tt.version), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, savefile.Encode(&buf, s, tt.version, 1950))

			got, err := savefile.Decode(&buf, tt.version, 1950)
			require.NoError(t, err)
			assert.Zero(t, buf.Len(), "section fully consumed")

			require.Len(t, got.History, len(s.History))
			for i := range s.History {
				assert.Equal(t, s.History[i].Year, got.History[i].Year)
				assert.Equal(t, s.History[i].Flags, got.History[i].Flags)
			}

			switch {
			case !tt.wantRates:
				assert.Equal(t, 0.01, got.TaxRates[budget.SalesTax])
				assert.Equal(t, 0.01, got.TaxRates[budget.FuelTaxIncome])
				assert.Equal(t, budget.FallbackLoanRepaymentTime, got.LoanRepaymentTime)
			case !tt.wantControls:
				assert.Equal(t, s.TaxRates[budget.SalesTax], got.TaxRates[budget.SalesTax])
				assert.Equal(t, s.LoanRepaymentTime, got.LoanRepaymentTime)
				assert.Zero(t, got.TaxRates[budget.FuelTaxIncome])
			default:
				assert.Equal(t, s.TaxRates[budget.SalesTax], got.TaxRates[budget.SalesTax])
				assert.Equal(t, s.LoanRepaymentTime, got.LoanRepaymentTime)
			}

			if tt.wantControls {
				assert.Equal(t, s.History[1].Control, got.History[1].Control)
				assert.Equal(t, s.EstimateNext, got.EstimateNext)
				assert.Equal(t, s.TaxRates[budget.FuelTaxIncome], got.TaxRates[budget.FuelTaxIncome])
			} else {
				assert.Equal(t, 1.0, got.History[1].Control[budget.EducationExpenses])
				assert.Equal(t, budget.NewBudget(0, 0), got.EstimateNext)
			}
		})
	}
}

// =============================================================================
// BYTE LAYOUT
// =============================================================================

// section builds a treasury section field by field.
type section struct {
	t   *testing.T
	buf bytes.Buffer
}

func (s *section) put(vs ...any) *section {
	for _, v := range vs {
		require.NoError(s.t, binary.Write(&s.buf, binary.LittleEndian, v))
	}
	return s
}

// ledger writes one ledger: year, flags, then every line's amount followed by
// its control when controls is true. Unlisted lines are 0 with control 1.
func (s *section) ledger(year int32, flags budget.BudgetFlags, wide, controls bool,
	amounts map[budget.Line]float64, ctl map[budget.Line]float32) *section {
	s.put(year, int32(flags))
	for l := budget.NullBudget; l < budget.NumLines; l++ {
		if wide {
			s.put(amounts[l])
		} else {
			s.put(float32(amounts[l]))
		}
		if controls {
			c, ok := ctl[l]
			if !ok {
				c = 1
			}
			s.put(c)
		}
	}
	return s
}

func TestDecode_CurrentLayout(t *testing.T) {
	// GIVEN: A version 59 section written by hand: float32 rates and
	//        repayment time, then ledgers with float64 amounts each followed
	//        by a float32 control
	// WHEN: It is decoded
	// THEN: Every field lands where it belongs and re-encoding gives the
	//       same bytes

	sec := &section{t: t}
	sec.put(float32(0.015625), float32(0.0625), float32(0.25), float32(7), int32(1))
	sec.ledger(2, budget.FlagValid, true, true,
		map[budget.Line]float64{budget.BudgetBalance: 1234, budget.SalesTax: 56.5},
		map[budget.Line]float32{budget.EducationExpenses: 1.25})
	sec.ledger(2, budget.FlagValid|budget.FlagEstimate, true, true,
		map[budget.Line]float64{budget.BudgetBalance: 1300},
		map[budget.Line]float32{budget.FuelTaxIncome: 0.03125})
	sec.ledger(3, budget.FlagValid|budget.FlagEstimate, true, true,
		map[budget.Line]float64{budget.BudgetBalance: 1400}, nil)
	raw := append([]byte(nil), sec.buf.Bytes()...)

	got, err := savefile.Decode(&sec.buf, 59, 1950)
	require.NoError(t, err)
	assert.Zero(t, sec.buf.Len(), "section fully consumed")

	assert.Equal(t, 0.015625, got.TaxRates[budget.PropertyTax])
	assert.Equal(t, 0.0625, got.TaxRates[budget.SalesTax])
	assert.Equal(t, 0.25, got.TaxRates[budget.FinesAndFeesIncome])
	assert.Equal(t, 0.03125, got.TaxRates[budget.FuelTaxIncome])
	assert.Equal(t, 7.0, got.LoanRepaymentTime)

	require.Len(t, got.History, 1)
	assert.Equal(t, 2, got.History[0].Year)
	assert.Equal(t, 1234.0, got.History[0].Line[budget.BudgetBalance])
	assert.Equal(t, 56.5, got.History[0].Line[budget.SalesTax])
	assert.Equal(t, 1.25, got.History[0].Control[budget.EducationExpenses])
	assert.Equal(t, 1.0, got.History[0].Control[budget.SalesTax])
	assert.Equal(t, 1300.0, got.Estimate.Line[budget.BudgetBalance])
	assert.Equal(t, 1.0, got.Estimate.Control[budget.FuelTaxIncome])
	assert.Equal(t, 3, got.EstimateNext.Year)
	assert.Equal(t, 1400.0, got.EstimateNext.Line[budget.BudgetBalance])

	var out bytes.Buffer
	require.NoError(t, savefile.Encode(&out, got, 59, 1950))
	assert.Equal(t, raw, out.Bytes())
}

func TestDecode_DoubleMoneyWithoutControls(t *testing.T) {
	// GIVEN: A version 40 section: float32 rates, absolute years, float64
	//        amounts, no controls and no next-year estimate
	// WHEN: It is decoded
	// THEN: Years become offsets, controls default to 1 and the fuel rate is 0

	sec := &section{t: t}
	sec.put(float32(0.015625), float32(0.0625), float32(0), float32(3), int32(1))
	sec.ledger(1952, budget.FlagValid, true, false,
		map[budget.Line]float64{budget.BudgetBalance: -250.75}, nil)
	sec.ledger(1952, budget.FlagValid|budget.FlagEstimate, true, false,
		map[budget.Line]float64{budget.BudgetBalance: -100}, nil)
	raw := append([]byte(nil), sec.buf.Bytes()...)

	got, err := savefile.Decode(&sec.buf, 40, 1950)
	require.NoError(t, err)
	assert.Zero(t, sec.buf.Len(), "section fully consumed")

	assert.Equal(t, 0.0625, got.TaxRates[budget.SalesTax])
	assert.Zero(t, got.TaxRates[budget.FuelTaxIncome])
	assert.Equal(t, 3.0, got.LoanRepaymentTime)
	require.Len(t, got.History, 1)
	assert.Equal(t, 2, got.History[0].Year)
	assert.Equal(t, -250.75, got.History[0].Line[budget.BudgetBalance])
	assert.Equal(t, 1.0, got.History[0].Control[budget.EducationExpenses])
	assert.Equal(t, -100.0, got.Estimate.Line[budget.BudgetBalance])
	assert.Equal(t, budget.NewBudget(0, 0), got.EstimateNext)

	var out bytes.Buffer
	require.NoError(t, savefile.Encode(&out, got, 40, 1950))
	assert.Equal(t, raw, out.Bytes())
}

func TestDecode_SingleMoney(t *testing.T) {
	// GIVEN: A version 22 section: no rates, float32 amounts
	// WHEN: It is decoded
	// THEN: Rates take their legacy values and amounts are read at float32

	sec := &section{t: t}
	sec.put(int32(1))
	sec.ledger(1950, budget.FlagValid, false, false,
		map[budget.Line]float64{budget.BudgetBalance: 1234.5}, nil)
	sec.ledger(1950, budget.FlagValid|budget.FlagEstimate, false, false,
		map[budget.Line]float64{budget.BudgetBalance: 99}, nil)
	raw := append([]byte(nil), sec.buf.Bytes()...)

	got, err := savefile.Decode(&sec.buf, 22, 1950)
	require.NoError(t, err)
	assert.Zero(t, sec.buf.Len(), "section fully consumed")

	for _, l := range budget.TaxLines {
		assert.Equal(t, 0.01, got.TaxRates[l], l.String())
	}
	assert.Equal(t, budget.FallbackLoanRepaymentTime, got.LoanRepaymentTime)
	require.Len(t, got.History, 1)
	assert.Equal(t, 0, got.History[0].Year)
	assert.Equal(t, 1234.5, got.History[0].Line[budget.BudgetBalance])
	assert.Equal(t, 99.0, got.Estimate.Line[budget.BudgetBalance])

	var out bytes.Buffer
	require.NoError(t, savefile.Encode(&out, got, 22, 1950))
	assert.Equal(t, raw, out.Bytes())
}

func TestEncode_AbsoluteYearsBeforeOffsets(t *testing.T) {
	// GIVEN: A ledger for year offset 3
	// WHEN: Written as version 49 and as version 50
	// THEN: Version 49 stores 1953, version 50 stores 3

	s := budget.State{
		TaxRates:          map[budget.Line]float64{},
		LoanRepaymentTime: 1,
		History:           []budget.Budget{budget.NewBudget(3, budget.FlagValid)},
		Estimate:          budget.NewBudget(3, 0),
	}

	// 3 rates + repayment time (float32) + count
	const yearOffset = 4*4 + 4

	for version, want := range map[int]int32{49: 1953, 50: 3} {
		var buf bytes.Buffer
		require.NoError(t, savefile.Encode(&buf, s, version, 1950))
		raw := buf.Bytes()
		assert.Equal(t, want, int32(binary.LittleEndian.Uint32(raw[yearOffset:])), "version %d", version)

		got, err := savefile.Decode(bytes.NewReader(raw), version, 1950)
		require.NoError(t, err)
		assert.Equal(t, 3, got.History[0].Year)
	}
}

func TestLoad_OldFileResetsOutsideGameMode(t *testing.T) {
	src := played(t)
	s := src.engine.State()

	dst := newTestEngine(t, budget.ModeDesigner)
	_, err := savefile.Unmarshal(frame(t, savefile.VersionLegacyReset, s), dst.engine)
	require.NoError(t, err)
	assert.Equal(t, 500.0, dst.engine.Current().Balance())
	assert.Equal(t, 0, dst.engine.NumHistoricalBudgets())

	_, err = savefile.Unmarshal(frame(t, savefile.CurrentVersion, s), dst.engine)
	require.NoError(t, err)
	assert.Equal(t, 1, dst.engine.NumHistoricalBudgets())
}

func TestLoad_OldFileKeptInGameMode(t *testing.T) {
	src := played(t)

	dst := newTestEngine(t, budget.ModeGame)
	_, err := savefile.Unmarshal(frame(t, savefile.VersionLegacyReset, src.engine.State()), dst.engine)
	require.NoError(t, err)
	assert.Equal(t, 1, dst.engine.NumHistoricalBudgets())
}

// =============================================================================
// FRAMING ERRORS
// =============================================================================

func TestLoad_FramingErrors(t *testing.T) {
	good, err := savefile.Marshal(played(t).engine)
	require.NoError(t, err)

	badMagic := append([]byte("XXXX"), good[4:]...)

	future := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(future[4:], uint32(savefile.CurrentVersion+1))

	negative := append([]byte(nil), good[:8]...)
	negative = append(negative, good[8:8+4*4]...)
	negative = binary.LittleEndian.AppendUint32(negative, uint32(0xFFFFFFFF))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"bad magic", badMagic, savefile.ErrBadMagic},
		{"future version", future, savefile.ErrUnsupportedVersion},
		{"truncated header", good[:6], savefile.ErrTruncated},
		{"truncated body", good[:len(good)-10], savefile.ErrTruncated},
		{"negative history length", negative, savefile.ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := newTestEngine(t, budget.ModeGame)
			require.True(t, dst.engine.ForceTransaction(budget.SalesTax, 42))

			_, err := savefile.Unmarshal(tt.data, dst.engine)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 542.0, dst.engine.Current().Balance(), "engine untouched")
		})
	}
}

func TestEncode_UnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	err := savefile.Encode(&buf, budget.State{}, 0, 1950)
	assert.ErrorIs(t, err, savefile.ErrUnsupportedVersion)

	_, err = savefile.Decode(&buf, savefile.CurrentVersion+1, 1950)
	assert.ErrorIs(t, err, savefile.ErrUnsupportedVersion)
}

// =============================================================================
// SAVE SLOTS
// =============================================================================

func TestSaveToLoadFrom_MemoryStore(t *testing.T) {
	// GIVEN: Two saves of a changing engine
	// WHEN: Listing and loading the first one
	// THEN: The list is newest first without data, and the first state returns

	ctx := context.Background()
	store := savefile.NewMemoryStore()
	src := played(t)

	first, err := savefile.SaveTo(ctx, store, "first", src.engine)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, savefile.CurrentVersion, first.Version)
	balance := src.engine.Current().Balance()
	assert.Equal(t, balance, first.Balance)

	require.True(t, src.engine.ForceTransaction(budget.SalesTax, 1000))
	second, err := savefile.SaveTo(ctx, store, "second", src.engine)
	require.NoError(t, err)

	latest, err := store.LatestSave(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	list, err := store.ListSaves(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, rec := range list {
		assert.Nil(t, rec.Data)
	}

	_, err = savefile.LoadFrom(ctx, store, first.ID, src.engine)
	require.NoError(t, err)
	assert.Equal(t, balance, src.engine.Current().Balance())

	_, err = savefile.LoadFrom(ctx, store, "missing", src.engine)
	assert.ErrorIs(t, err, savefile.ErrSaveNotFound)
}

func TestMemoryStore_Empty(t *testing.T) {
	_, err := savefile.NewMemoryStore().LatestSave(context.Background())
	assert.ErrorIs(t, err, savefile.ErrSaveNotFound)
}
