/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built cities that exercise specific treasury features:
	deficit spending, line of credit, tax locks, non-game modes.

AVAILABLE SCENARIOS:

	default-town:  Stock economy, default taxes
	deficit-city:  Deep in debt, paying loan interest every tick
	boom-town:     Large retail economy with sales tax raised
	tax-revolt:    Property tax locked at the punitive rate
	designer:      Designer mode, where the treasury refuses transactions

HOW SCENARIOS WORK:
 1. Reset the engine and rewind the city clock
 2. Replace the city profile
 3. Apply policy and opening transactions
 4. Run one update so estimates and line of credit are populated

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "deficit-city"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a scenario setup to 'setups'

NOTE:

	Scenarios reset the treasury. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: treasury handlers
  - sim/city.go: Profile
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/sim"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "default-town",
		Name:        "Default Town",
		Description: "Stock economy with default taxes",
	},
	{
		ID:          "deficit-city",
		Name:        "Deficit City",
		Description: "Overspent on construction, living on the line of credit",
	},
	{
		ID:          "boom-town",
		Name:        "Boom Town",
		Description: "Large retail economy with a 2% sales tax",
	},
	{
		ID:          "tax-revolt",
		Name:        "Tax Revolt",
		Description: "Property tax locked at the punitive rate",
	},
	{
		ID:          "designer",
		Name:        "Designer",
		Description: "Designer mode: the treasury refuses every transaction",
	},
}

// scenarioSetup adjusts the default profile and seeds the engine.
type scenarioSetup struct {
	profile func(p *sim.Profile)
	seed    func(e *budget.Engine) error
}

var setups = map[string]scenarioSetup{
	"default-town": {},
	"deficit-city": {
		profile: func(p *sim.Profile) {
			p.NationalRate = 0.06
		},
		seed: func(e *budget.Engine) error {
			if !e.ForceTransaction(budget.RoadBuildExpenses, -1500) {
				return fmt.Errorf("seed road construction")
			}
			return e.SetLoanRepaymentTime(10)
		},
	},
	"boom-town": {
		profile: func(p *sim.Profile) {
			p.Population = 40000
			p.Businesses = 2500
			p.ParkLots = 120
			p.AssessedValue = 900000
			p.AssetValue = 80000
		},
		seed: func(e *budget.Engine) error {
			return e.SetTaxRate(budget.SalesTax, 0.02)
		},
	},
	"tax-revolt": {
		seed: func(e *budget.Engine) error {
			return e.LockTax(budget.PropertyTax)
		},
	},
	"designer": {
		profile: func(p *sim.Profile) {
			p.Mode = budget.ModeDesigner
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.ApplyScenario(req.ScenarioID); err != nil {
		if err == errUnknownScenario {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

var errUnknownScenario = fmt.Errorf("unknown scenario")

// ApplyScenario resets the city and treasury to the named scenario.
func (h *Handler) ApplyScenario(id string) error {
	setup, ok := setups[id]
	if !ok {
		return errUnknownScenario
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	profile := sim.DefaultProfile()
	if setup.profile != nil {
		setup.profile(&profile)
	}
	h.City.Update(func(p *sim.Profile) { *p = profile })
	h.City.SetTime(0)
	h.City.SetRetailSeries(budget.TimeSeries{Step: profile.RetailStep})
	h.Engine.Reset()

	if setup.seed != nil {
		if err := setup.seed(h.Engine); err != nil {
			return err
		}
	}
	h.Engine.Update(0)

	h.currentScenario = id
	h.Log.WithField("scenario", id).Info("Scenario loaded")
	return nil
}
