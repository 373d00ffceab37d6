/*
Package factory provides TOML to Go economy conversion.

PURPOSE:
  Converts TOML economy definitions into the economic constants table and
  the reference city profile. Designers tune the economy without code
  changes; the factory fills defaults and rejects typos.

TOML SCHEMA:
  [constants]
  StartingMoney = 500.0
  GoodFaithLOC = 100.0
  StartYear = 1950.0

  [city]
  population = 2000.0
  assessed_value = 40000.0
  national_rate = 0.03
  mode = "game"

  Every key is optional; missing keys keep their default. Unknown keys are
  an error.

USAGE:
  econ, err := factory.LoadEconomy("economy.toml")
  city := sim.NewCity(econ.City)
  engine := budget.New(city.Host(econ.Constants, nil))

SEE ALSO:
  - sim/constants.go: default constants
  - sim/city.go: Profile
*/
package factory

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/warp/treasury-engine/budget"
	"github.com/warp/treasury-engine/sim"
)

var ErrUnknownKey = errors.New("unknown economy key")

// =============================================================================
// TOML SCHEMA TYPES
// =============================================================================

// EconomyTOML is the TOML representation of an economy.
type EconomyTOML struct {
	Constants map[string]float64 `toml:"constants"`
	City      *CityTOML          `toml:"city"`
}

// CityTOML overrides fields of the default city profile.
type CityTOML struct {
	Population      *float64 `toml:"population"`
	Businesses      *float64 `toml:"businesses"`
	ParkLots        *float64 `toml:"park_lots"`
	AssessedValue   *float64 `toml:"assessed_value"`
	AssetValue      *float64 `toml:"asset_value"`
	NationalRate    *float64 `toml:"national_rate"`
	Inflation       *float64 `toml:"inflation"`
	RetailPerCapita *float64 `toml:"retail_per_capita"`
	DayLength       *float64 `toml:"day_length"`
	RetailStep      *float64 `toml:"retail_step"`
	Mode            string   `toml:"mode"`
}

// Economy is a parsed economy.
type Economy struct {
	Constants sim.Constants
	City      sim.Profile
}

// DefaultEconomy is the stock constants and the default city.
func DefaultEconomy() Economy {
	return Economy{
		Constants: sim.DefaultConstants(),
		City:      sim.DefaultProfile(),
	}
}

// =============================================================================
// PARSING
// =============================================================================

// ParseEconomy parses a TOML economy definition over the defaults.
func ParseEconomy(data string) (Economy, error) {
	var def EconomyTOML
	md, err := toml.Decode(data, &def)
	if err != nil {
		return Economy{}, fmt.Errorf("parsing economy: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Economy{}, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(keys, ", "))
	}

	econ := DefaultEconomy()
	if err := applyConstants(econ.Constants, def.Constants); err != nil {
		return Economy{}, err
	}
	if def.City != nil {
		if err := applyCity(&econ.City, *def.City); err != nil {
			return Economy{}, err
		}
	}
	return econ, nil
}

// LoadEconomy reads path, returning the defaults if it doesn't exist.
func LoadEconomy(path string) (Economy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultEconomy(), nil
		}
		return Economy{}, fmt.Errorf("reading economy: %w", err)
	}
	return ParseEconomy(string(data))
}

func applyConstants(dst sim.Constants, src map[string]float64) error {
	known := make(map[string]budget.ConstantID, len(budget.ConstantIDs))
	for _, id := range budget.ConstantIDs {
		known[string(id)] = id
	}

	var unknown []string
	for k, v := range src {
		id, ok := known[k]
		if !ok {
			unknown = append(unknown, "constants."+k)
			continue
		}
		dst[id] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", "))
	}
	return nil
}

func applyCity(p *sim.Profile, c CityTOML) error {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Population, c.Population)
	set(&p.Businesses, c.Businesses)
	set(&p.ParkLots, c.ParkLots)
	set(&p.AssessedValue, c.AssessedValue)
	set(&p.AssetValue, c.AssetValue)
	set(&p.NationalRate, c.NationalRate)
	set(&p.Inflation, c.Inflation)
	set(&p.RetailPerCapita, c.RetailPerCapita)
	set(&p.DayLength, c.DayLength)
	set(&p.RetailStep, c.RetailStep)

	if c.Mode != "" {
		mode, err := budget.ParseMode(c.Mode)
		if err != nil {
			return fmt.Errorf("city.mode: %w", err)
		}
		p.Mode = mode
	}
	if p.DayLength <= 0 {
		return fmt.Errorf("city.day_length must be positive, got %v", p.DayLength)
	}
	return nil
}

// =============================================================================
// ENCODING
// =============================================================================

// EncodeConstants renders a constants table as a [constants] TOML section,
// keys sorted.
func EncodeConstants(c sim.Constants) (string, error) {
	out := make(map[string]float64, len(c))
	for id, v := range c {
		out[string(id)] = v
	}
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(EconomyTOML{Constants: out}); err != nil {
		return "", fmt.Errorf("encoding economy: %w", err)
	}
	return sb.String(), nil
}
