// Package roster supplies the initial country parameters for a run. A run
// cannot start without a valid roster: validation failures here are fatal.
package roster

import (
	"errors"
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/bruno7317/cloudweave-sim/internal/country"
)

// Static returns the built-in two-country roster: one steady exporter and
// one importer running a structural deficit.
func Static() []country.Options {
	return []country.Options{
		{Name: "Canada", Stockpile: 10, MoneyReserves: 100, ProductionRate: 3, ConsumptionRate: 1},
		{Name: "USA", Stockpile: 2, MoneyReserves: 100, ProductionRate: 1, ConsumptionRate: 4},
	}
}

var syntheticNames = []string{
	"Canada", "USA", "Brazil", "Norway", "Nigeria", "Qatar",
	"Mexico", "Kazakhstan", "Angola", "Oman", "Ecuador", "Gabon",
}

// Generate builds a deterministic synthetic roster of n countries, capped at
// the available name pool. Parameters vary smoothly by index via seeded
// simplex noise, so the same seed always yields the same roster.
func Generate(seed int64, n int) ([]country.Options, error) {
	if n <= 0 {
		return nil, fmt.Errorf("synthetic roster needs at least one country, got %d", n)
	}
	if n > len(syntheticNames) {
		n = len(syntheticNames)
	}

	noise := opensimplex.NewNormalized(seed)
	out := make([]country.Options, 0, n)
	for i := 0; i < n; i++ {
		x := float64(i) * 0.35
		v := noise.Eval2(x, 0)   // drives the production side
		w := noise.Eval2(x, 7.3) // drives the consumption side
		out = append(out, country.Options{
			Name:            syntheticNames[i],
			Stockpile:       4 + int(math.Round(v*12)),
			MoneyReserves:   60 + int(math.Round(w*120)),
			ProductionRate:  1 + int(math.Round(v*4)),
			ConsumptionRate: 1 + int(math.Round(w*4)),
		})
	}
	return out, nil
}

// Build validates a roster and constructs the countries in roster order.
// That order is the turn iteration order for the whole run.
func Build(entries []country.Options) ([]*country.Country, error) {
	if len(entries) == 0 {
		return nil, errors.New("roster is empty")
	}

	countries := make([]*country.Country, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, opts := range entries {
		if err := opts.Validate(); err != nil {
			return nil, fmt.Errorf("roster entry: %w", err)
		}
		if seen[opts.Name] {
			return nil, fmt.Errorf("duplicate country %q in roster", opts.Name)
		}
		seen[opts.Name] = true
		countries = append(countries, country.New(opts))
	}
	return countries, nil
}
