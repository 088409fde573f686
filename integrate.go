/*
Copyright © 2024 the Reach authors.
This file is part of Reach.

Reach is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Reach is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Reach.  If not, see <http://www.gnu.org/licenses/>.
*/

package reach

import (
	"math"
	"sort"
)

// A ReachRecord is the integrated population estimate for one
// (cell, bracket) pair: residents, circulating transit riders, and
// their sum, the reach. All counts are non-negative whole persons and
// male+female == total for each of the three groups.
type ReachRecord struct {
	Cell    CellID
	Bracket AgeBracket

	ResidentMale, ResidentFemale, ResidentTotal int
	CircMale, CircFemale, CircTotal             int
	ReachMale, ReachFemale, ReachTotal          int
}

// cellBracketKey identifies one output row during integration.
type cellBracketKey struct {
	cell    CellID
	bracket AgeBracket
}

// Integrate merges residential and circulating population per
// (cell, bracket). Residential contributions are the sex-ratio split
// of each unit's bracket population multiplied by that unit's
// allocation weight in the cell; all fractional contributions are
// summed first and rounded exactly once at the (cell, bracket) level.
// After rounding the male count, female is recomputed as total−male so
// the sum invariant holds by construction. Cells present in only one
// source get 0 for the other.
func Integrate(units []*CensusUnit, weights *WeightTable, ratios SexRatioTable, circ []CirculationRow) ([]ReachRecord, error) {
	if weights == nil {
		return nil, newConfigurationError("reach: missing allocation weight table")
	}
	resMale := make(map[cellBracketKey]float64)
	resTotal := make(map[cellBracketKey]float64)
	for _, u := range units {
		ws := weights.Unit(u.ID)
		if len(ws) == 0 {
			continue
		}
		// Iterate brackets in canonical order for determinism.
		for _, bracket := range AgeBrackets {
			total, ok := u.BracketPop[bracket]
			if !ok {
				continue
			}
			male, _, err := ratios.Split(bracket, total)
			if err != nil {
				return nil, err
			}
			for _, w := range ws {
				k := cellBracketKey{cell: w.Cell, bracket: bracket}
				resMale[k] += male * w.Weight
				resTotal[k] += total * w.Weight
			}
		}
	}

	circMale := make(map[cellBracketKey]float64)
	circTotal := make(map[cellBracketKey]float64)
	for _, row := range circ {
		if row.Male < 0 || row.Female < 0 || row.Other < 0 || row.Total < 0 {
			return nil, newDataIntegrityError("reach: negative circulating count in cell %v bracket %q", row.Cell, row.Bracket)
		}
		if diff := row.Total - (row.Male + row.Female + row.Other); math.Abs(diff) > 1e-9 {
			return nil, newDataIntegrityError("reach: circulating counts in cell %v bracket %q sum to %g, not the row total %g",
				row.Cell, row.Bracket, row.Male+row.Female+row.Other, row.Total)
		}
		k := cellBracketKey{cell: row.Cell, bracket: row.Bracket}
		circMale[k] += row.Male
		circTotal[k] += row.Total
	}

	keys := make(map[cellBracketKey]bool)
	for k := range resTotal {
		keys[k] = true
	}
	for k := range circTotal {
		keys[k] = true
	}

	records := make([]ReachRecord, 0, len(keys))
	for k := range keys {
		rec := ReachRecord{Cell: k.cell, Bracket: k.bracket}

		// Round once, at the cell/bracket level.
		rec.ResidentMale = int(math.Round(resMale[k]))
		rec.ResidentTotal = int(math.Round(resTotal[k]))
		rec.ResidentFemale = rec.ResidentTotal - rec.ResidentMale

		rec.CircMale = int(math.Round(circMale[k]))
		rec.CircTotal = int(math.Round(circTotal[k]))
		rec.CircFemale = rec.CircTotal - rec.CircMale

		rec.ReachMale = rec.ResidentMale + rec.CircMale
		rec.ReachTotal = rec.ResidentTotal + rec.CircTotal
		rec.ReachFemale = rec.ReachTotal - rec.ReachMale

		for _, v := range []int{
			rec.ResidentMale, rec.ResidentFemale, rec.ResidentTotal,
			rec.CircMale, rec.CircFemale, rec.CircTotal,
			rec.ReachMale, rec.ReachFemale, rec.ReachTotal,
		} {
			if v < 0 {
				return nil, newDataIntegrityError("reach: negative count in cell %v bracket %q", k.cell, k.bracket)
			}
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Cell != records[j].Cell {
			if records[i].Cell.Q != records[j].Cell.Q {
				return records[i].Cell.Q < records[j].Cell.Q
			}
			return records[i].Cell.R < records[j].Cell.R
		}
		return bracketIndex(records[i].Bracket) < bracketIndex(records[j].Bracket)
	})
	return records, nil
}
