package sim

import "github.com/warp/treasury-engine/budget"

// Constants is a map-backed economic constants table. Missing entries read
// as 0.
type Constants map[budget.ConstantID]float64

func (c Constants) C(id budget.ConstantID) float64 { return c[id] }

// Clone returns an independent copy.
func (c Constants) Clone() Constants {
	out := make(Constants, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// DefaultConstants is the stock economy. Money is in thousands of dollars
// (MoneyMultiplier converts to display dollars).
func DefaultConstants() Constants {
	return Constants{
		budget.CStartingMoney:            500,
		budget.CFinesPerPerson:           0.02,
		budget.CFinesPerBusiness:         0.1,
		budget.CParkLotMaint:             0.4,
		budget.CAssetLOC:                 0.1,
		budget.CGoodFaithLOC:             100,
		budget.CMoneyMultiplier:          1000,
		budget.CStartYear:                1950,
		budget.CBudgetControlFactor:      2,
		budget.CNoEduRetailSpending:      0.01,
		budget.CHSEduRetailSpending:      0.02,
		budget.CCollegeEduRetailSpending: 0.04,
	}
}
