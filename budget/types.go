/*
Package budget provides the municipal treasury engine.

PURPOSE:
  This package owns the city's money: one ledger (Budget) per simulated year,
  the tax policy, interest on debt, the line of credit and the two estimate
  ledgers shown to the player. Every other subsystem moves money through the
  transaction entry points in transaction.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Line: a closed enumeration of budget rows (income, expense, aggregate)
  - LineInfo: static metadata per line (income? mandatory? reported?)
  - Budget: one year's amounts and spending-control multipliers
  - BudgetFlags: year-to-date / valid / estimate status

DESIGN PRINCIPLES:
  1. Incremental aggregates: totals, cashflow and balance are only ever
     maintained by the cascade in transaction.go, never recomputed.
  2. Value semantics: Budget is array-backed, so a copy is a snapshot.
  3. Finite values only: every write is validated before mutation.

SEE ALSO:
  - transaction.go: validated money movements and the aggregate cascade
  - history.go: year rollover and snapshots by relative year
  - projection.go: the per-tick update and estimate ledgers
*/
package budget

import "fmt"

// =============================================================================
// LINE - One row of a budget
// =============================================================================

// Line identifies one budget row. The numeric order is the persisted order.
type Line int

const (
	NullBudget Line = iota
	PropertyTax
	SalesTax
	FinesAndFeesIncome
	FuelTaxIncome
	AmenityIncome
	TransitIncome
	AssetSalesIncome
	RoadBuildExpenses
	ExpwyBuildExpenses
	TransitBuildExpenses
	PillarBuildExpenses
	EminentDomainExpenses
	RepairExpenses
	BuildingBuildExpenses
	MiscDiscExpenses
	EducationExpenses
	RecreationExpenses
	ServicesExpenses
	UniversityExpenses
	TransitExpenses
	TotalIncome
	TotalExpenses
	TotalDiscretionary
	TotalMandatory
	TotalEarnings
	Assets
	LineOfCredit
	LoanInterest
	Cashflow
	BudgetBalance

	// NumLines is the number of rows in every Budget, NullBudget included.
	NumLines
)

// LineInfo is the fixed metadata of a line.
type LineInfo struct {
	Name string
	Code string

	IsIncome    bool
	IsMandatory bool

	// NotAggregate lines are excluded from the statistics collector.
	NotAggregate bool
}

var lineTable = [NumLines]LineInfo{
	NullBudget:            {Name: "Null Budget", Code: "BudgetNull", NotAggregate: true},
	PropertyTax:           {Name: "Property Tax", Code: "BudgetPropertyTax", IsIncome: true, IsMandatory: true},
	SalesTax:              {Name: "Sales Tax", Code: "BudgetSalesTax", IsIncome: true, IsMandatory: true},
	FinesAndFeesIncome:    {Name: "Fines and Fees", Code: "BudgetFinesAndFeesIncome", IsIncome: true, IsMandatory: true},
	FuelTaxIncome:         {Name: "Gas Tax", Code: "BudgetFuelTaxIncome", IsIncome: true, IsMandatory: true},
	AmenityIncome:         {Name: "Amenity Income", Code: "BudgetAmenityIncome", IsIncome: true, IsMandatory: true},
	TransitIncome:         {Name: "Transit Income", Code: "BudgetTransitIncome", IsIncome: true, IsMandatory: true},
	AssetSalesIncome:      {Name: "Asset Sales", Code: "BudgetAssetSalesIncome", IsIncome: true},
	RoadBuildExpenses:     {Name: "Road Construction", Code: "BudgetRoadBuildExpenses"},
	ExpwyBuildExpenses:    {Name: "Expwy Construction", Code: "BudgetExpwyBuildExpenses"},
	TransitBuildExpenses:  {Name: "Transit Construction", Code: "BudgetTransitBuildExpenses"},
	PillarBuildExpenses:   {Name: "Pillar Construction", Code: "BudgetPillarBuildExpenses"},
	EminentDomainExpenses: {Name: "Eminent Domain", Code: "BudgetEminentDomainExpenses"},
	RepairExpenses:        {Name: "Infrastructure Repairs", Code: "BudgetRepairExpenses", IsMandatory: true},
	BuildingBuildExpenses: {Name: "Building Construction", Code: "BudgetBuildingBuildExpenses"},
	MiscDiscExpenses:      {Name: "Misc", Code: "BudgetMiscDiscExpenses"},
	EducationExpenses:     {Name: "Education", Code: "BudgetEducationExpenses", IsMandatory: true},
	RecreationExpenses:    {Name: "Parks and Recreation", Code: "BudgetRecreationExpenses", IsMandatory: true},
	ServicesExpenses:      {Name: "Community Services", Code: "BudgetServicesExpenses", IsMandatory: true},
	UniversityExpenses:    {Name: "University", Code: "BudgetUniversityExpenses", IsMandatory: true},
	TransitExpenses:       {Name: "Transit Operations", Code: "BudgetTransitExpenses", IsMandatory: true},
	TotalIncome:           {Name: "Total Income", Code: "BudgetTotalIncome", NotAggregate: true},
	TotalExpenses:         {Name: "Total Expenses", Code: "BudgetTotalExpenses", NotAggregate: true},
	TotalDiscretionary:    {Name: "Total Discretionary", Code: "BudgetTotalDiscretionary", NotAggregate: true},
	TotalMandatory:        {Name: "Total Mandatory", Code: "BudgetTotalMandatory", NotAggregate: true},
	TotalEarnings:         {Name: "Total Earnings", Code: "BudgetTotalEarnings", NotAggregate: true},
	Assets:                {Name: "Assets", Code: "BudgetAssets", NotAggregate: true},
	LineOfCredit:          {Name: "Line of Credit", Code: "BudgetLineOfCredit", NotAggregate: true},
	LoanInterest:          {Name: "Loan Interest", Code: "BudgetLoanInterest", IsMandatory: true},
	Cashflow:              {Name: "Cashflow", Code: "BudgetCashflow"},
	BudgetBalance:         {Name: "Balance", Code: "BudgetBalance", NotAggregate: true},
}

// Valid reports whether l is one of the enumerated lines.
func (l Line) Valid() bool { return l >= NullBudget && l < NumLines }

// Info returns the static metadata for l. Invalid lines yield the zero value.
func (l Line) Info() LineInfo {
	if !l.Valid() {
		return LineInfo{}
	}
	return lineTable[l]
}

func (l Line) Name() string { return l.Info().Name }
func (l Line) Code() string { return l.Info().Code }

func (l Line) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Line(%d)", int(l))
	}
	return lineTable[l].Code
}

// IsPrimitive reports whether l is a category money is booked against, as
// opposed to a total or a valuation.
func (l Line) IsPrimitive() bool {
	return l > NullBudget && l <= TransitExpenses || l == LoanInterest
}

// LineByCode finds a line by its code ("BudgetSalesTax") or by the code
// without the "Budget" prefix ("SalesTax").
func LineByCode(code string) (Line, bool) {
	for l := NullBudget; l < NumLines; l++ {
		c := lineTable[l].Code
		if c == code || c == "Budget"+code {
			return l, true
		}
	}
	return NullBudget, false
}

// PrimitiveLines returns every line that money can be booked against.
func PrimitiveLines() []Line {
	var lines []Line
	for l := NullBudget; l < NumLines; l++ {
		if l.IsPrimitive() {
			lines = append(lines, l)
		}
	}
	return lines
}

// =============================================================================
// BUDGET - One year's ledger
// =============================================================================

// BudgetFlags is the status of a ledger.
type BudgetFlags int32

const (
	FlagYearToDate BudgetFlags = 1 << iota
	FlagValid
	FlagEstimate
)

func (f BudgetFlags) Has(flag BudgetFlags) bool { return f&flag != 0 }

// Budget is one year's ledger. It is a plain value: copying it yields an
// independent snapshot.
type Budget struct {
	Year    int
	Flags   BudgetFlags
	Line    [NumLines]float64
	Control [NumLines]float64
}

// NewBudget returns a zeroed ledger with every control multiplier at 1.
func NewBudget(year int, flags BudgetFlags) Budget {
	var b Budget
	b.clear()
	b.Year = year
	b.Flags = flags
	return b
}

func (b *Budget) clear() {
	b.Year = 0
	b.Flags = 0
	for i := range b.Line {
		b.Line[i] = 0
		b.Control[i] = 1
	}
}

func (b Budget) IsYearToDate() bool { return b.Flags.Has(FlagYearToDate) }
func (b Budget) IsValid() bool      { return b.Flags.Has(FlagValid) }
func (b Budget) IsEstimate() bool   { return b.Flags.Has(FlagEstimate) }

// Get returns the amount on line l, or 0 for an invalid line.
func (b Budget) Get(l Line) float64 {
	if !l.Valid() {
		return 0
	}
	return b.Line[l]
}

// Balance is shorthand for the BudgetBalance line.
func (b Budget) Balance() float64 { return b.Line[BudgetBalance] }

// Credit is the balance plus the line of credit: what can still be spent.
func (b Budget) Credit() float64 { return b.Line[BudgetBalance] + b.Line[LineOfCredit] }
