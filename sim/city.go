// Package sim is a reference host for the treasury engine: a small in-memory
// city that provides the clock, statistics, economy, simulation mode and
// property-tax payments the engine consumes.
//
// It plays the role the full game plays in production and is what the
// server and the tests run against.
package sim

import (
	"math"
	"sync"

	"github.com/warp/treasury-engine/budget"
)

// =============================================================================
// CALENDAR
// =============================================================================

const (
	DaysPerYear = 365.0
	HoursPerDay = 24.0

	// maxRetailSamples bounds the retail series to a few years of history.
	maxRetailSamples = 4 * 52
)

const (
	OurCityEcon budget.EconID = iota
	ChunkEcon
	NationalEcon
)

// =============================================================================
// PROFILE - Static description of a city
// =============================================================================

// Profile describes a city at creation time.
type Profile struct {
	Population    float64
	Businesses    float64
	ParkLots      float64
	AssessedValue float64 // property tax base
	AssetValue    float64 // city-owned assets
	NationalRate  float64
	Inflation     float64

	// RetailPerCapita is daily retail spending per resident.
	RetailPerCapita float64

	// DayLength is real seconds per simulated day.
	DayLength float64

	// RetailStep is the retail series sample step, in days.
	RetailStep float64

	Mode budget.Mode
}

// DefaultProfile is a small, solvent town.
func DefaultProfile() Profile {
	return Profile{
		Population:      2000,
		Businesses:      120,
		ParkLots:        10,
		AssessedValue:   40000,
		AssetValue:      5000,
		NationalRate:    0.03,
		Inflation:       1,
		RetailPerCapita: 0.002,
		DayLength:       60,
		RetailStep:      7,
		Mode:            budget.ModeGame,
	}
}

// =============================================================================
// CITY
// =============================================================================

type statKey struct {
	econ budget.EconID
	kind budget.StatKind
}

// City implements budget.Clock, budget.Stats, budget.Economy,
// budget.ModeSource and budget.BuildingPayments.
type City struct {
	mu sync.Mutex

	profile Profile
	time    float64 // days since the start year

	retail        budget.TimeSeries
	retailPending float64
	nextSample    float64

	stats           map[statKey]float64
	assetValueCalls int
}

var (
	_ budget.Clock            = (*City)(nil)
	_ budget.Stats            = (*City)(nil)
	_ budget.Economy          = (*City)(nil)
	_ budget.ModeSource       = (*City)(nil)
	_ budget.BuildingPayments = (*City)(nil)
)

func NewCity(p Profile) *City {
	if p.DayLength <= 0 {
		p.DayLength = DefaultProfile().DayLength
	}
	if p.RetailStep <= 0 {
		p.RetailStep = DefaultProfile().RetailStep
	}
	return &City{
		profile:    p,
		retail:     budget.TimeSeries{Step: p.RetailStep},
		nextSample: p.RetailStep,
		stats:      make(map[statKey]float64),
	}
}

// Host wires the city into an engine host.
func (c *City) Host(consts budget.Constants, events budget.EventSink) budget.Host {
	return budget.Host{
		Constants: consts,
		Clock:     c,
		Stats:     c,
		Economy:   c,
		Mode:      c,
		Events:    events,
		Buildings: c,
	}
}

// Advance moves the clock forward by realSeconds and samples retail activity
// at every step boundary crossed.
func (c *City) Advance(realSeconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.time += realSeconds / c.profile.DayLength
	for c.time >= c.nextSample {
		step := c.retail.Step
		sample := c.profile.RetailPerCapita*c.profile.Population*step*c.profile.Inflation + c.retailPending
		c.retailPending = 0
		c.retail.Values = append(c.retail.Values, sample)
		if len(c.retail.Values) > maxRetailSamples {
			c.retail.Values = c.retail.Values[len(c.retail.Values)-maxRetailSamples:]
		}
		c.nextSample += step
	}
}

// SetTime jumps the clock to days since the start year without sampling.
func (c *City) SetTime(days float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = days
	c.nextSample = (math.Floor(days/c.retail.Step) + 1) * c.retail.Step
}

// SetRetailSeries replaces the retail series.
func (c *City) SetRetailSeries(series budget.TimeSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retail = budget.TimeSeries{Step: series.Step, Values: append([]float64(nil), series.Values...)}
}

// Update applies fn to the profile under the city lock.
func (c *City) Update(fn func(p *Profile)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.profile)
}

func (c *City) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// AssetValueCalls counts CityAssetValue evaluations.
func (c *City) AssetValueCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assetValueCalls
}

// =============================================================================
// budget.Clock
// =============================================================================

func (c *City) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *City) BaseYear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(math.Floor(c.time / DaysPerYear))
}

func (c *City) OneYear() float64 { return DaysPerYear }
func (c *City) OneHour() float64 { return 1 / HoursPerDay }

func (c *City) DayLength() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.DayLength
}

// =============================================================================
// budget.Stats
// =============================================================================

func (c *City) OurCity() budget.EconID { return OurCityEcon }

func (c *City) IsCityEcon(econ budget.EconID) bool {
	return econ == OurCityEcon || econ == ChunkEcon
}

func (c *City) TimeSeries(econ budget.EconID, kind budget.StatKind) budget.TimeSeries {
	c.mu.Lock()
	defer c.mu.Unlock()
	if econ != OurCityEcon || kind != budget.RetailTransactions {
		return budget.TimeSeries{Step: c.retail.Step}
	}
	return budget.TimeSeries{Step: c.retail.Step, Values: append([]float64(nil), c.retail.Values...)}
}

func (c *City) Statistic(econ budget.EconID, kind budget.StatKind) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if econ == OurCityEcon {
		switch kind {
		case budget.Population:
			return c.profile.Population
		case budget.Businesses:
			return c.profile.Businesses
		case budget.ParkLots:
			return c.profile.ParkLots
		}
	}
	return c.stats[statKey{econ, kind}]
}

func (c *City) AdjustStat(econ budget.EconID, kind budget.StatKind, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[statKey{econ, kind}] += delta
	if kind == budget.RetailTransactions && econ == OurCityEcon {
		c.retailPending += delta
	}
}

// Adjusted returns the running total reported through AdjustStat.
func (c *City) Adjusted(econ budget.EconID, kind budget.StatKind) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats[statKey{econ, kind}]
}

// =============================================================================
// budget.Economy and budget.ModeSource
// =============================================================================

func (c *City) NationalInterestRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.NationalRate
}

func (c *City) Inflation() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.Inflation
}

func (c *City) CityAssetValue() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assetValueCalls++
	return c.profile.AssetValue
}

func (c *City) GameMode() budget.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile.Mode
}

// =============================================================================
// budget.BuildingPayments
// =============================================================================

// MakeBuildingPayments books property tax on the assessed value.
func (c *City) MakeBuildingPayments(book budget.Booker, b *budget.Budget, duration float64) {
	c.mu.Lock()
	assessed := c.profile.AssessedValue * c.profile.Inflation
	c.mu.Unlock()

	book.TransactionOn(b, budget.PropertyTax, assessed*book.EffectiveTaxRate(budget.PropertyTax)*duration)
}
