package budget_test

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/sim"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	city    *sim.City
	consts  sim.Constants
	events  *sim.EventLog
	reports *budget.CountingReporter
	engine  *budget.Engine
}

// quietProfile is a city with no revenue or costs of its own, one simulated
// day per real second.
func quietProfile() sim.Profile {
	return sim.Profile{
		Inflation:  1,
		DayLength:  1,
		RetailStep: 73,
		Mode:       budget.ModeGame,
	}
}

func newFixture(t *testing.T, adjust ...func(p *sim.Profile)) *fixture {
	t.Helper()

	profile := quietProfile()
	for _, fn := range adjust {
		fn(&profile)
	}

	f := &fixture{
		city:    sim.NewCity(profile),
		consts:  sim.DefaultConstants(),
		events:  &sim.EventLog{},
		reports: &budget.CountingReporter{},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	host := f.city.Host(f.consts, f.events)
	host.Reporter = f.reports
	host.Log = log
	f.engine = budget.New(host)
	return f
}

// oneYear is the real-time duration of one simulated year in the quiet city.
const oneYear = sim.DaysPerYear

func withMode(m budget.Mode) func(p *sim.Profile) {
	return func(p *sim.Profile) { p.Mode = m }
}
