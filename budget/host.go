package budget

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// HOST - Services the surrounding simulation provides
// =============================================================================

// ConstantID names an entry of the economic constants table.
type ConstantID string

const (
	CStartingMoney            ConstantID = "StartingMoney"
	CFinesPerPerson           ConstantID = "FinesPerPerson"
	CFinesPerBusiness         ConstantID = "FinesPerBusiness"
	CParkLotMaint             ConstantID = "ParkLotMaint"
	CAssetLOC                 ConstantID = "AssetLOC"
	CGoodFaithLOC             ConstantID = "GoodFaithLOC"
	CMoneyMultiplier          ConstantID = "MoneyMultiplier"
	CStartYear                ConstantID = "StartYear"
	CBudgetControlFactor      ConstantID = "BudgetControlFactor"
	CNoEduRetailSpending      ConstantID = "NoEduRetailSpending"
	CHSEduRetailSpending      ConstantID = "HSEduRetailSpending"
	CCollegeEduRetailSpending ConstantID = "CollegeEduRetailSpending"
)

// ConstantIDs lists every constant the engine reads.
var ConstantIDs = []ConstantID{
	CStartingMoney, CFinesPerPerson, CFinesPerBusiness, CParkLotMaint,
	CAssetLOC, CGoodFaithLOC, CMoneyMultiplier, CStartYear,
	CBudgetControlFactor, CNoEduRetailSpending, CHSEduRetailSpending,
	CCollegeEduRetailSpending,
}

// Constants is the economic constants table.
type Constants interface {
	C(id ConstantID) float64
}

// Clock exposes simulated time. Now, OneYear and OneHour share one unit
// (simulated days in the reference host).
type Clock interface {
	Now() float64
	BaseYear() int
	OneYear() float64
	OneHour() float64

	// DayLength is the number of real seconds in one simulated time unit.
	DayLength() float64
}

// EconID identifies an economic zone.
type EconID int

// StatKind identifies a statistic.
type StatKind int

const (
	RetailTransactions StatKind = iota
	TouristTransactions
	Population
	Businesses
	ParkLots

	budgetStatBase StatKind = 100
)

// BudgetStat is the statistic that mirrors budget line l.
func BudgetStat(l Line) StatKind { return budgetStatBase + StatKind(l) - 1 }

// TimeSeries is a sampled statistic with a fixed step, oldest value first.
type TimeSeries struct {
	Step   float64
	Values []float64
}

// Stats is the statistics provider and the write-side adjust sink.
type Stats interface {
	OurCity() EconID
	IsCityEcon(econ EconID) bool
	TimeSeries(econ EconID, kind StatKind) TimeSeries
	Statistic(econ EconID, kind StatKind) float64
	AdjustStat(econ EconID, kind StatKind, delta float64)
}

// Economy provides macro-economic inputs.
type Economy interface {
	NationalInterestRate() float64
	Inflation() float64

	// CityAssetValue is expensive; the engine caches it.
	CityAssetValue() float64
}

// Mode is the simulation mode.
type Mode int

const (
	ModeGame Mode = iota
	ModeTest
	ModeDesigner
)

func (m Mode) String() string {
	switch m {
	case ModeGame:
		return "game"
	case ModeTest:
		return "test"
	case ModeDesigner:
		return "designer"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeGame, ModeTest, ModeDesigner} {
		if m.String() == s {
			return m, nil
		}
	}
	return ModeGame, fmt.Errorf("unknown mode %q", s)
}

type ModeSource interface {
	GameMode() Mode
}

// EventSink is notified exactly once per closed year, with a copy of the
// closed budget. It runs after the engine is released and may call back into
// the Engine.
type EventSink interface {
	BudgetClosed(closed Budget)
}

// Booker books money on an explicit ledger through the policy gate. It is
// handed to host callbacks that run while the engine is busy, so it must be
// used instead of the Engine's own methods there.
type Booker interface {
	TransactionOn(b *Budget, line Line, amount float64) bool
	EffectiveTaxRate(l Line) float64
}

// BuildingPayments books property tax for one pass of the per-tick routine.
type BuildingPayments interface {
	MakeBuildingPayments(book Booker, b *Budget, duration float64)
}

// Host bundles everything the engine consumes. Events, Buildings, Reporter
// and Log are optional.
type Host struct {
	Constants Constants
	Clock     Clock
	Stats     Stats
	Economy   Economy
	Mode      ModeSource

	Events    EventSink
	Buildings BuildingPayments
	Reporter  Reporter
	Log       logrus.FieldLogger
}

type noEvents struct{}

func (noEvents) BudgetClosed(Budget) {}

type noBuildings struct{}

func (noBuildings) MakeBuildingPayments(Booker, *Budget, float64) {}

func (h Host) withDefaults() Host {
	if h.Log == nil {
		h.Log = logrus.StandardLogger()
	}
	if h.Reporter == nil {
		h.Reporter = LogReporter{Log: h.Log}
	}
	if h.Events == nil {
		h.Events = noEvents{}
	}
	if h.Buildings == nil {
		h.Buildings = noBuildings{}
	}
	return h
}
