package engine

import "factor-trading-bot/internal/types"

// SelectAssets keeps the catalog entries whose symbol is in universe,
// preserving catalog order. Universe symbols missing from the catalog are
// returned separately so the caller can report them.
func SelectAssets(catalog []types.Asset, universe []string) (selected []types.Asset, missing []string) {
	wanted := make(map[string]bool, len(universe))
	for _, s := range universe {
		wanted[s] = true
	}

	found := make(map[string]bool, len(universe))
	for _, a := range catalog {
		if wanted[a.Symbol] && !found[a.Symbol] {
			selected = append(selected, a)
			found[a.Symbol] = true
		}
	}

	for _, s := range universe {
		if !found[s] {
			missing = append(missing, s)
		}
	}
	return selected, missing
}
