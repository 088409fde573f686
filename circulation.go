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
	"sort"
	"strings"

	"github.com/ctessum/geom"
)

// A Gender is a normalized rider gender category.
type Gender string

// Gender categories. GenderOther covers unknown and nonbinary input
// values; it is counted in totals but stays outside the male/female
// split.
const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
	GenderOther  Gender = "other"
)

// NormalizeGender maps a raw gender string to a Gender category.
func NormalizeGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "female", "fem":
		return GenderFemale
	case "m", "male", "masc":
		return GenderMale
	}
	return GenderOther
}

// A TripLeg is one segment of a transit journey: the atomic unit of
// the circulation dataset. Legs are fully consumed by aggregation and
// never persisted downstream.
type TripLeg struct {
	// RiderID identifies the rider (fare card), not the trip.
	RiderID string

	// Weight is the sampling expansion factor: the number of people
	// this leg represents.
	Weight float64

	// Origin and Destination are geographic coordinates. NaN
	// coordinates are unmappable and their observations are dropped.
	Origin, Destination geom.Point

	// OriginJurisdiction and DestinationJurisdiction are the
	// administrative codes of the two endpoints, used to classify
	// them as inside or outside the target city.
	OriginJurisdiction, DestinationJurisdiction int

	// Age is the rider's age in years; NaN if unknown.
	Age float64

	// Gender is the raw gender value from the source dataset.
	Gender string
}

// A CirculationRow is the deduplicated circulating population for one
// (cell, bracket) pair. Other is counted in Total but excluded from
// the male/female split.
type CirculationRow struct {
	Cell    CellID
	Bracket AgeBracket
	Male    float64
	Female  float64
	Other   float64
	Total   float64
}

// CirculationConfig configures trip-leg aggregation.
type CirculationConfig struct {
	// Resolution is the analysis resolution trip legs are mapped at.
	// It must match the grid resolution.
	Resolution int

	// JurisdictionMin and JurisdictionMax bound (inclusive) the
	// jurisdiction codes considered inside the target city.
	JurisdictionMin, JurisdictionMax int
}

func (config *CirculationConfig) inCity(jurisdiction int) bool {
	return jurisdiction >= config.JurisdictionMin && jurisdiction <= config.JurisdictionMax
}

// observation is one in-city trip-leg endpoint mapped to a cell.
type observation struct {
	rider   string
	cell    CellID
	bracket AgeBracket
	gender  Gender
	weight  float64
}

// Aggregate turns raw transit trip legs into deduplicated circulating
// population counts per (cell, bracket). Each leg unpivots into up to
// two observations (origin side, destination side); only in-city ones
// are kept; a rider counts once per cell regardless of trip count, the
// first occurrence winning on attribute disagreement. Endpoints whose
// coordinate maps to no grid cell are dropped, not defaulted.
func (config *CirculationConfig) Aggregate(grid *HexGrid, legs []TripLeg) ([]CirculationRow, error) {
	if config.Resolution != grid.Resolution {
		return nil, newConfigurationError("reach: trip-leg resolution %d does not match grid resolution %d",
			config.Resolution, grid.Resolution)
	}
	if config.JurisdictionMin > config.JurisdictionMax {
		return nil, newConfigurationError("reach: jurisdiction range [%d, %d] is empty",
			config.JurisdictionMin, config.JurisdictionMax)
	}

	type riderCell struct {
		cell  CellID
		rider string
	}
	seen := make(map[riderCell]*observation)
	var order []riderCell
	add := func(leg *TripLeg, p geom.Point, jurisdiction int) error {
		if !config.inCity(jurisdiction) {
			return nil
		}
		cell, ok := grid.CellAt(p)
		if !ok {
			// Unmappable coordinate: drop this observation only.
			return nil
		}
		if leg.RiderID == "" {
			return newStructuralInputError("reach: trip leg mapping to cell %v has no rider id", cell.ID)
		}
		if leg.Weight < 0 {
			return newDataIntegrityError("reach: trip leg for rider %s has negative weight %g", leg.RiderID, leg.Weight)
		}
		key := riderCell{cell: cell.ID, rider: leg.RiderID}
		if _, ok := seen[key]; ok {
			// Distinct people, not trip volume: first occurrence wins.
			return nil
		}
		seen[key] = &observation{
			rider:   leg.RiderID,
			cell:    cell.ID,
			bracket: BracketForAge(leg.Age),
			gender:  NormalizeGender(leg.Gender),
			weight:  leg.Weight,
		}
		order = append(order, key)
		return nil
	}
	for i := range legs {
		leg := &legs[i]
		if err := add(leg, leg.Origin, leg.OriginJurisdiction); err != nil {
			return nil, err
		}
		if err := add(leg, leg.Destination, leg.DestinationJurisdiction); err != nil {
			return nil, err
		}
	}

	type cellBracket struct {
		cell    CellID
		bracket AgeBracket
	}
	sums := make(map[cellBracket]*CirculationRow)
	for _, key := range order {
		obs := seen[key]
		k := cellBracket{cell: obs.cell, bracket: obs.bracket}
		row, ok := sums[k]
		if !ok {
			row = &CirculationRow{Cell: obs.cell, Bracket: obs.bracket}
			sums[k] = row
		}
		switch obs.gender {
		case GenderFemale:
			row.Female += obs.weight
		case GenderMale:
			row.Male += obs.weight
		default:
			row.Other += obs.weight
		}
		row.Total += obs.weight
	}

	rows := make([]CirculationRow, 0, len(sums))
	for _, row := range sums {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Cell != rows[j].Cell {
			if rows[i].Cell.Q != rows[j].Cell.Q {
				return rows[i].Cell.Q < rows[j].Cell.Q
			}
			return rows[i].Cell.R < rows[j].Cell.R
		}
		return bracketIndex(rows[i].Bracket) < bracketIndex(rows[j].Bracket)
	})
	return rows, nil
}
