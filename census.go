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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// An AgeBracket is a canonical five-year age bin ("00-04" through
// "95-99", then "100+"). BracketUnknown marks circulating population
// whose age could not be determined; it is never valid for residents.
type AgeBracket string

// BracketUnknown is the explicit bracket for unmappable ages.
const BracketUnknown AgeBracket = "unknown"

// AgeBrackets is the canonical bracket set, in ascending order.
var AgeBrackets = []AgeBracket{
	"00-04", "05-09", "10-14", "15-19", "20-24", "25-29", "30-34",
	"35-39", "40-44", "45-49", "50-54", "55-59", "60-64", "65-69",
	"70-74", "75-79", "80-84", "85-89", "90-94", "95-99", "100+",
}

var canonicalBrackets = func() map[AgeBracket]int {
	m := make(map[AgeBracket]int, len(AgeBrackets))
	for i, b := range AgeBrackets {
		m[b] = i
	}
	return m
}()

// ValidBracket reports whether b is one of the canonical age brackets.
// BracketUnknown is not canonical.
func ValidBracket(b AgeBracket) bool {
	_, ok := canonicalBrackets[b]
	return ok
}

// BracketForAge maps a numeric age to its canonical bracket.
// NaN and negative ages map to BracketUnknown.
func BracketForAge(age float64) AgeBracket {
	if math.IsNaN(age) || age < 0 {
		return BracketUnknown
	}
	if age >= 100 {
		return "100+"
	}
	lo := int(age) / 5 * 5
	return AgeBracket(fmt.Sprintf("%02d-%02d", lo, lo+4))
}

// bracketIndex orders brackets for deterministic output; BracketUnknown
// sorts after every canonical bracket.
func bracketIndex(b AgeBracket) int {
	if i, ok := canonicalBrackets[b]; ok {
		return i
	}
	return len(AgeBrackets)
}

// A CensusUnit is one irregular census polygon: the source of truth for
// resident population. Geometry is in geographic coordinates.
type CensusUnit struct {
	geom.Polygonal

	// ID is the unique census unit identifier.
	ID string

	// TotalPop is the total resident population of the unit.
	TotalPop float64

	// BracketPop holds the resident population per canonical age bracket.
	BracketPop map[AgeBracket]float64
}

// CensusConfig describes how to read census areal units from a
// shapefile whose geometry is in geographic coordinates.
type CensusConfig struct {
	// CensusFile is the path to the census shapefile.
	CensusFile string

	// IDColumn is the attribute column holding the unique unit id.
	IDColumn string

	// TotalColumn is the attribute column holding total population.
	TotalColumn string

	// BracketColumns maps attribute columns to the canonical age
	// brackets they hold population counts for.
	BracketColumns map[string]string
}

// ReadUnits reads the census units described by config. Missing
// required columns and NaN populations are structural errors; negative
// populations are data integrity errors.
func (config *CensusConfig) ReadUnits() ([]*CensusUnit, error) {
	if config.CensusFile == "" || config.IDColumn == "" || config.TotalColumn == "" {
		return nil, newConfigurationError("reach: census file, id column, and total column must all be specified")
	}
	if len(config.BracketColumns) == 0 {
		return nil, newConfigurationError("reach: no census bracket columns specified")
	}
	brackets := make(map[string]AgeBracket, len(config.BracketColumns))
	cols := []string{config.IDColumn, config.TotalColumn}
	bracketCols := make([]string, 0, len(config.BracketColumns))
	for col, b := range config.BracketColumns {
		bracket := AgeBracket(b)
		if !ValidBracket(bracket) {
			return nil, newStructuralInputError("reach: census column %s maps to unknown age bracket %q", col, b)
		}
		brackets[col] = bracket
		bracketCols = append(bracketCols, col)
	}
	sort.Strings(bracketCols)
	cols = append(cols, bracketCols...)

	dec, err := shp.NewDecoder(config.CensusFile)
	if err != nil {
		return nil, fmt.Errorf("reach: opening census shapefile: %v", err)
	}
	var units []*CensusUnit
	for {
		g, fields, more := dec.DecodeRowFields(cols...)
		if !more {
			break
		}
		u := &CensusUnit{BracketPop: make(map[AgeBracket]float64, len(bracketCols))}
		id, ok := fields[config.IDColumn]
		if !ok {
			return nil, newStructuralInputError("reach: census shapefile is missing attribute column %s", config.IDColumn)
		}
		u.ID = strings.Trim(id, "\x00* ")
		if u.ID == "" {
			return nil, newStructuralInputError("reach: census unit %d has an empty id", len(units))
		}
		if u.TotalPop, err = censusValue(fields, config.TotalColumn, u.ID); err != nil {
			return nil, err
		}
		for _, col := range bracketCols {
			v, err := censusValue(fields, col, u.ID)
			if err != nil {
				return nil, err
			}
			u.BracketPop[brackets[col]] = v
		}
		switch gg := g.(type) {
		case geom.Polygonal:
			u.Polygonal = gg
		default:
			return nil, newStructuralInputError("reach: census unit %s: shapes need to be polygons", u.ID)
		}
		units = append(units, u)
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("reach: reading census shapefile: %v", err)
	}
	dec.Close()
	return units, nil
}

func censusValue(fields map[string]string, col, unitID string) (float64, error) {
	s, ok := fields[col]
	if !ok {
		return 0, newStructuralInputError("reach: census shapefile is missing attribute column %s", col)
	}
	v, err := s2f(s)
	if err != nil {
		return 0, newStructuralInputError("reach: census unit %s column %s: %v", unitID, col, err)
	}
	if math.IsNaN(v) {
		return 0, newStructuralInputError("reach: census unit %s column %s: NaN population", unitID, col)
	}
	if v < 0 {
		return 0, newDataIntegrityError("reach: census unit %s column %s: negative population %g", unitID, col, v)
	}
	return v, nil
}

// s2f parses a shapefile attribute value, treating null bytes and
// asterisk padding as empty.
func s2f(s string) (float64, error) {
	s = strings.Trim(s, "\x00* ")
	if s == "" {
		// null value
		return 0., nil
	}
	return strconv.ParseFloat(s, 64)
}
