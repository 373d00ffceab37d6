/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's ledgers from the external API contract.

MONEY:
  The engine keeps money in internal units (thousands of dollars in the
  stock economy). The API speaks display dollars: every amount is scaled by
  the MoneyMultiplier constant and rounded to cents with shopspring/decimal,
  and request amounts are divided back. Non-finite values render as 0.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Budgets:       BudgetDTO, LineDTO, TreasuryDTO
  Transactions:  TransactionRequest, TransactionDTO, CanBuyDTO
  Policy:        TaxDTO, SetTaxRateRequest, LoanRepaymentDTO, ControlDTO
  Simulation:    TickRequest
  Saves:         SaveDTO, CreateSaveRequest
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/savefile"
)

// =============================================================================
// BUDGETS
// =============================================================================

// LineDTO is one row of a budget.
type LineDTO struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Control   float64         `json:"control"`
	Income    bool            `json:"income"`
	Mandatory bool            `json:"mandatory"`
}

// BudgetDTO represents a ledger in API responses.
type BudgetDTO struct {
	Year         int             `json:"year"`
	YearOffset   int             `json:"year_offset"`
	YearToDate   bool            `json:"year_to_date"`
	Valid        bool            `json:"valid"`
	Estimate     bool            `json:"estimate"`
	Balance      decimal.Decimal `json:"balance"`
	LineOfCredit decimal.Decimal `json:"line_of_credit"`
	Lines        []LineDTO       `json:"lines"`
}

// TreasuryDTO summarizes the treasury.
type TreasuryDTO struct {
	Year                 int             `json:"year"`
	Mode                 string          `json:"mode"`
	Balance              decimal.Decimal `json:"balance"`
	Credit               decimal.Decimal `json:"credit"`
	Earnings             decimal.Decimal `json:"earnings"`
	InterestRate         float64         `json:"interest_rate"`
	LoanRepaymentTime    float64         `json:"loan_repayment_time"`
	NumHistoricalBudgets int             `json:"num_historical_budgets"`
	Scenario             string          `json:"scenario,omitempty"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionRequest books an amount in display dollars. Expenses are
// negative.
type TransactionRequest struct {
	Line   string          `json:"line"`
	Amount decimal.Decimal `json:"amount"`
}

// TransactionDTO is the outcome of a transaction.
type TransactionDTO struct {
	Line     string          `json:"line"`
	Amount   decimal.Decimal `json:"amount"`
	Accepted bool            `json:"accepted"`
	Balance  decimal.Decimal `json:"balance"`
}

type CanBuyDTO struct {
	Line   string          `json:"line"`
	Amount decimal.Decimal `json:"amount"`
	CanBuy bool            `json:"can_buy"`
}

// =============================================================================
// POLICY
// =============================================================================

type TaxDTO struct {
	Line          string  `json:"line"`
	Name          string  `json:"name"`
	Rate          float64 `json:"rate"`
	EffectiveRate float64 `json:"effective_rate"`
	Enabled       bool    `json:"enabled"`
	Locked        bool    `json:"locked"`
}

type SetTaxRateRequest struct {
	Rate float64 `json:"rate"`
}

type LoanRepaymentDTO struct {
	Years        float64 `json:"years"`
	InterestRate float64 `json:"interest_rate,omitempty"`
}

type ControlDTO struct {
	Line   string  `json:"line"`
	Value  float64 `json:"value"`
	Effect float64 `json:"effect,omitempty"`
}

// =============================================================================
// SIMULATION
// =============================================================================

// TickRequest advances the simulation by Seconds of real time.
type TickRequest struct {
	Seconds float64 `json:"seconds"`
}

// =============================================================================
// SAVES
// =============================================================================

type SaveDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Version   int             `json:"version"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt string          `json:"created_at"`
}

type CreateSaveRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

// money converts internal units to display dollars.
type money struct {
	multiplier float64
}

func (m money) display(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v * m.multiplier).Round(2)
}

func (m money) internal(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	if m.multiplier == 0 {
		return f
	}
	return f / m.multiplier
}

func (m money) budgetDTO(b budget.Budget, startYear int) BudgetDTO {
	dto := BudgetDTO{
		Year:         b.Year + startYear,
		YearOffset:   b.Year,
		YearToDate:   b.IsYearToDate(),
		Valid:        b.IsValid(),
		Estimate:     b.IsEstimate(),
		Balance:      m.display(b.Line[budget.BudgetBalance]),
		LineOfCredit: m.display(b.Line[budget.LineOfCredit]),
		Lines:        make([]LineDTO, 0, budget.NumLines-1),
	}
	for l := budget.NullBudget + 1; l < budget.NumLines; l++ {
		info := l.Info()
		dto.Lines = append(dto.Lines, LineDTO{
			Code:      info.Code,
			Name:      info.Name,
			Amount:    m.display(b.Line[l]),
			Control:   b.Control[l],
			Income:    info.IsIncome,
			Mandatory: info.IsMandatory,
		})
	}
	return dto
}

func (m money) saveDTO(rec savefile.Record) SaveDTO {
	return SaveDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Version:   rec.Version,
		Balance:   m.display(rec.Balance),
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
	}
}
