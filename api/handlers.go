/*
handlers.go - HTTP API handlers for the treasury

PURPOSE:
  Exposes the treasury engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine.

ENDPOINTS:
  Treasury:
    GET    /api/treasury                 Summary (balance, credit, rates)
    GET    /api/budgets                  Full history, oldest first
    GET    /api/budgets/{rel}            Ledger by relative year
    GET    /api/archive                  Closed years from the archive

  Transactions:
    POST   /api/transactions             Policy-gated transaction
    POST   /api/transactions/force       Unconditional transaction
    GET    /api/canbuy?line=&amount=     Affordability check

  Policy:
    GET    /api/taxes                    All tax lines
    GET    /api/taxes/{line}             One tax line
    PUT    /api/taxes/{line}             Set rate
    POST   /api/taxes/{line}/enable      Enable
    POST   /api/taxes/{line}/disable     Disable
    POST   /api/taxes/{line}/lock        Lock at the punitive rate
    POST   /api/taxes/unlock             Unlock all
    GET    /api/loan-repayment           Repayment time and interest rate
    PUT    /api/loan-repayment           Set repayment time
    GET    /api/controls/{line}          Spending control
    PUT    /api/controls/{line}          Set spending control

  Simulation:
    POST   /api/tick                     Advance the clock and update
    POST   /api/reset                    Reset the treasury
    GET    /api/saves                    List saves
    POST   /api/saves                    Save now
    POST   /api/saves/{id}/load          Load a save

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown line, save or budget
  - 409: Locked tax
  - 500: Internal errors
  A refused transaction is not an error: it returns 200 with accepted=false.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/savefile"
	"github.com/warp/treasury-engine/sim"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *budget.Engine
	City      *sim.City
	Constants sim.Constants
	Archive   budget.Archive
	Saves     savefile.Store
	Log       logrus.FieldLogger

	// mu serializes clock advances with resets and loads.
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler. archive and saves may be nil.
func NewHandler(engine *budget.Engine, city *sim.City, consts sim.Constants, archive budget.Archive, saves savefile.Store, log logrus.FieldLogger) *Handler {
	if saves == nil {
		saves = savefile.NewMemoryStore()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Engine:    engine,
		City:      city,
		Constants: consts,
		Archive:   archive,
		Saves:     saves,
		Log:       log,
	}
}

func (h *Handler) money() money {
	return money{multiplier: h.Constants.C(budget.CMoneyMultiplier)}
}

func (h *Handler) startYear() int {
	return int(h.Constants.C(budget.CStartYear))
}

// Tick advances the city clock by realSeconds and runs one engine update.
func (h *Handler) Tick(realSeconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.City.Advance(realSeconds)
	h.Engine.Update(realSeconds)
}

// Save writes the engine into a new save slot.
func (h *Handler) Save(ctx context.Context, name string) (savefile.Record, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return savefile.SaveTo(ctx, h.Saves, name, h.Engine)
}

// =============================================================================
// TREASURY HANDLERS
// =============================================================================

// GetTreasury returns the treasury summary.
func (h *Handler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	m := h.money()
	cur := h.Engine.Current()

	h.mu.Lock()
	scenario := h.currentScenario
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, TreasuryDTO{
		Year:                 cur.Year + h.startYear(),
		Mode:                 h.Engine.Mode().String(),
		Balance:              m.display(cur.Balance()),
		Credit:               m.display(h.Engine.Credit()),
		Earnings:             m.display(h.Engine.Earnings()),
		InterestRate:         h.Engine.InterestRate(),
		LoanRepaymentTime:    h.Engine.LoanRepaymentTime(),
		NumHistoricalBudgets: h.Engine.NumHistoricalBudgets(),
		Scenario:             scenario,
	})
}

// ListBudgets returns the whole history.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	m := h.money()
	history := h.Engine.History()
	dtos := make([]BudgetDTO, len(history))
	for i, b := range history {
		dtos[i] = m.budgetDTO(b, h.startYear())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBudget returns the ledger rel years from now.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	rel, err := strconv.Atoi(chi.URLParam(r, "rel"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid relative year", err)
		return
	}
	writeJSON(w, http.StatusOK, h.money().budgetDTO(h.Engine.Budget(rel), h.startYear()))
}

// ListArchive returns the archived closed years.
func (h *Handler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if h.Archive == nil {
		writeJSON(w, http.StatusOK, []BudgetDTO{})
		return
	}
	budgets, err := h.Archive.Budgets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list archive", err)
		return
	}
	m := h.money()
	dtos := make([]BudgetDTO, len(budgets))
	for i, b := range budgets {
		dtos[i] = m.budgetDTO(b, h.startYear())
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// CreateTransaction books a policy-gated transaction on the current ledger.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	h.book(w, r, h.Engine.Transaction)
}

// ForceTransaction books an unconditional transaction on the current ledger.
func (h *Handler) ForceTransaction(w http.ResponseWriter, r *http.Request) {
	h.book(w, r, h.Engine.ForceTransaction)
}

func (h *Handler) book(w http.ResponseWriter, r *http.Request, fn func(budget.Line, float64) bool) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	line, ok := budget.LineByCode(req.Line)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown budget line", nil)
		return
	}

	m := h.money()
	accepted := fn(line, m.internal(req.Amount))
	if accepted {
		h.Log.WithFields(logrus.Fields{"line": line.Code(), "amount": req.Amount.String()}).Debug("Transaction booked")
	}

	writeJSON(w, http.StatusOK, TransactionDTO{
		Line:     line.Code(),
		Amount:   req.Amount,
		Accepted: accepted,
		Balance:  m.display(h.Engine.Current().Balance()),
	})
}

// CanBuy checks whether spending amount on line is affordable.
func (h *Handler) CanBuy(w http.ResponseWriter, r *http.Request) {
	line, ok := budget.LineByCode(r.URL.Query().Get("line"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown budget line", nil)
		return
	}
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	writeJSON(w, http.StatusOK, CanBuyDTO{
		Line:   line.Code(),
		Amount: amount,
		CanBuy: h.Engine.CanBuy(line, h.money().internal(amount)),
	})
}

// =============================================================================
// TAX HANDLERS
// =============================================================================

func (h *Handler) taxDTO(l budget.Line) TaxDTO {
	return TaxDTO{
		Line:          l.Code(),
		Name:          l.Name(),
		Rate:          h.Engine.TaxRate(l),
		EffectiveRate: h.Engine.EffectiveTaxRate(l),
		Enabled:       h.Engine.IsTaxEnabled(l),
		Locked:        h.Engine.IsTaxLocked(l),
	}
}

// taxLine resolves the {line} URL parameter to a tax line, writing the error
// response when it doesn't.
func taxLine(w http.ResponseWriter, r *http.Request) (budget.Line, bool) {
	line, ok := budget.LineByCode(chi.URLParam(r, "line"))
	if !ok || !budget.IsTaxLine(line) {
		writeError(w, http.StatusNotFound, "Unknown tax line", nil)
		return 0, false
	}
	return line, true
}

func (h *Handler) ListTaxes(w http.ResponseWriter, r *http.Request) {
	dtos := make([]TaxDTO, len(budget.TaxLines))
	for i, l := range budget.TaxLines {
		dtos[i] = h.taxDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTax(w http.ResponseWriter, r *http.Request) {
	line, ok := taxLine(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.taxDTO(line))
}

func (h *Handler) SetTaxRate(w http.ResponseWriter, r *http.Request) {
	line, ok := taxLine(w, r)
	if !ok {
		return
	}
	var req SetTaxRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Engine.SetTaxRate(line, req.Rate); err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.taxDTO(line))
}

func (h *Handler) EnableTax(w http.ResponseWriter, r *http.Request) {
	h.taxAction(w, r, h.Engine.EnableTax)
}

func (h *Handler) DisableTax(w http.ResponseWriter, r *http.Request) {
	h.taxAction(w, r, h.Engine.DisableTax)
}

func (h *Handler) LockTax(w http.ResponseWriter, r *http.Request) {
	h.taxAction(w, r, h.Engine.LockTax)
}

func (h *Handler) taxAction(w http.ResponseWriter, r *http.Request, fn func(budget.Line) error) {
	line, ok := taxLine(w, r)
	if !ok {
		return
	}
	if err := fn(line); err != nil {
		writePolicyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.taxDTO(line))
}

func (h *Handler) UnlockTaxes(w http.ResponseWriter, r *http.Request) {
	h.Engine.UnlockTaxes()
	h.ListTaxes(w, r)
}

// =============================================================================
// LOAN AND CONTROL HANDLERS
// =============================================================================

func (h *Handler) GetLoanRepayment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LoanRepaymentDTO{
		Years:        h.Engine.LoanRepaymentTime(),
		InterestRate: h.Engine.InterestRate(),
	})
}

func (h *Handler) SetLoanRepayment(w http.ResponseWriter, r *http.Request) {
	var req LoanRepaymentDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Engine.SetLoanRepaymentTime(req.Years); err != nil {
		writePolicyError(w, err)
		return
	}
	h.GetLoanRepayment(w, r)
}

func (h *Handler) GetControl(w http.ResponseWriter, r *http.Request) {
	line, ok := budget.LineByCode(chi.URLParam(r, "line"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown budget line", nil)
		return
	}
	writeJSON(w, http.StatusOK, ControlDTO{
		Line:   line.Code(),
		Value:  h.Engine.BudgetControl(line),
		Effect: h.Engine.BudgetControlEffect(line),
	})
}

func (h *Handler) SetControl(w http.ResponseWriter, r *http.Request) {
	line, ok := budget.LineByCode(chi.URLParam(r, "line"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown budget line", nil)
		return
	}
	var req ControlDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Engine.SetBudgetControl(line, req.Value); err != nil {
		writePolicyError(w, err)
		return
	}
	h.GetControl(w, r)
}

// =============================================================================
// SIMULATION HANDLERS
// =============================================================================

// TickSimulation advances the simulation by the requested real seconds.
func (h *Handler) TickSimulation(w http.ResponseWriter, r *http.Request) {
	var req TickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Seconds <= 0 {
		writeError(w, http.StatusBadRequest, "seconds must be positive", nil)
		return
	}
	h.Tick(req.Seconds)
	h.GetTreasury(w, r)
}

// ResetTreasury resets the engine to its initial state.
func (h *Handler) ResetTreasury(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.Engine.Reset()
	h.currentScenario = ""
	h.mu.Unlock()

	h.Log.Info("Treasury reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SAVE HANDLERS
// =============================================================================

func (h *Handler) ListSaves(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Saves.ListSaves(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list saves", err)
		return
	}
	m := h.money()
	dtos := make([]SaveDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = m.saveDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSave(w http.ResponseWriter, r *http.Request) {
	var req CreateSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		req.Name = "manual"
	}
	rec, err := h.Save(r.Context(), req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.money().saveDTO(rec))
}

func (h *Handler) LoadSave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	h.mu.Lock()
	rec, err := savefile.LoadFrom(r.Context(), h.Saves, id, h.Engine)
	if err == nil {
		h.syncClock()
	}
	h.mu.Unlock()

	if errors.Is(err, savefile.ErrSaveNotFound) {
		writeError(w, http.StatusNotFound, "Save not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to load save", err)
		return
	}
	h.Log.WithField("save", rec.ID).Info("Save loaded")
	writeJSON(w, http.StatusOK, h.money().saveDTO(rec))
}

// RestoreLatest loads the most recent save, if any.
func (h *Handler) RestoreLatest(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, err := h.Saves.LatestSave(ctx)
	if errors.Is(err, savefile.ErrSaveNotFound) {
		h.Log.Info("No save found, starting a new treasury")
		return nil
	}
	if err != nil {
		return err
	}
	version, err := savefile.Unmarshal(rec.Data, h.Engine)
	if err != nil {
		return err
	}
	h.syncClock()
	h.Log.WithFields(logrus.Fields{"save": rec.ID, "name": rec.Name, "version": version}).Info("Treasury restored")
	return nil
}

// syncClock moves the city clock to the start of the restored current year
// when it is behind it, so the next tick does not roll the year.
func (h *Handler) syncClock() {
	year := h.Engine.Current().Year
	if h.City.BaseYear() < year {
		h.City.SetTime(float64(year) * sim.DaysPerYear)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writePolicyError maps engine setter errors to HTTP statuses.
func writePolicyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, budget.ErrTaxLocked):
		writeError(w, http.StatusConflict, "Tax is locked", err)
	case errors.Is(err, budget.ErrNotTaxLine), errors.Is(err, budget.ErrInvalidLine):
		writeError(w, http.StatusNotFound, "Unknown line", err)
	default:
		writeError(w, http.StatusBadRequest, "Invalid value", err)
	}
}
