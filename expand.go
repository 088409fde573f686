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
	"strings"

	"github.com/ctessum/sparse"
)

// An Adjacency answers neighborhood queries over grid cells. The
// returned set includes the center cell itself.
type Adjacency interface {
	Neighbors(center CellID, k int) []CellID
}

// A MetricTable is a dense cells-by-metrics matrix of reach values,
// the final numeric product of the pipeline.
type MetricTable struct {
	// Cells lists the row order of the table.
	Cells []CellID

	// Columns lists the column order of the table.
	Columns []string

	cellIndex map[CellID]int
	colIndex  map[string]int
	data      *sparse.DenseArray
}

// NewMetricTable creates a zero-filled table with the given rows and
// columns. Duplicate cells or columns are configuration errors.
func NewMetricTable(cells []CellID, columns []string) (*MetricTable, error) {
	t := &MetricTable{
		Cells:     cells,
		Columns:   columns,
		cellIndex: make(map[CellID]int, len(cells)),
		colIndex:  make(map[string]int, len(columns)),
		data:      sparse.ZerosDense(len(cells), len(columns)),
	}
	for i, c := range cells {
		if _, ok := t.cellIndex[c]; ok {
			return nil, newConfigurationError("reach: duplicate cell %v in metric table", c)
		}
		t.cellIndex[c] = i
	}
	for j, name := range columns {
		if _, ok := t.colIndex[name]; ok {
			return nil, newConfigurationError("reach: duplicate column %q in metric table", name)
		}
		t.colIndex[name] = j
	}
	return t, nil
}

// Get returns the value for the given cell and column, or 0 for cells
// absent from the table.
func (t *MetricTable) Get(cell CellID, column string) float64 {
	i, ok := t.cellIndex[cell]
	if !ok {
		return 0
	}
	j, ok := t.colIndex[column]
	if !ok {
		return 0
	}
	return t.data.Get(i, j)
}

// Set stores the value for the given cell and column.
func (t *MetricTable) Set(v float64, cell CellID, column string) error {
	i, ok := t.cellIndex[cell]
	if !ok {
		return newConfigurationError("reach: metric table has no cell %v", cell)
	}
	j, ok := t.colIndex[column]
	if !ok {
		return newConfigurationError("reach: metric table has no column %q", column)
	}
	t.data.Set(v, i, j)
	return nil
}

// HasColumn reports whether the table has the named column.
func (t *MetricTable) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// bracketColumn turns an age bracket into a legal attribute column
// name: "00-04" becomes "a00_04", "100+" becomes "a100", and
// BracketUnknown becomes "aunk".
func bracketColumn(b AgeBracket) string {
	if b == BracketUnknown {
		return "aunk"
	}
	s := string(b)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.TrimSuffix(s, "+")
	return "a" + s
}

// Summary column names in the metric table.
const (
	ColResidentTotal = "res_tot"
	ColCircTotal     = "circ_tot"
	ColReachMale     = "reach_m"
	ColReachFemale   = "reach_f"
	ColReachTotal    = "reach_tot"
)

// Pivot turns the long-form reach records into a wide metric table:
// one row per cell, one column per age bracket holding that bracket's
// reach total, plus summary columns for resident, circulating, male,
// and female totals. Cells with no record for a bracket hold 0.
func Pivot(records []ReachRecord) (*MetricTable, error) {
	cellSet := make(map[CellID]bool)
	var cells []CellID
	for _, rec := range records {
		if !cellSet[rec.Cell] {
			cellSet[rec.Cell] = true
			cells = append(cells, rec.Cell)
		}
	}
	sortCellIDs(cells)

	columns := make([]string, 0, len(AgeBrackets)+6)
	for _, b := range AgeBrackets {
		columns = append(columns, bracketColumn(b))
	}
	columns = append(columns, bracketColumn(BracketUnknown),
		ColResidentTotal, ColCircTotal, ColReachMale, ColReachFemale, ColReachTotal)

	t, err := NewMetricTable(cells, columns)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		i := t.cellIndex[rec.Cell]
		j, ok := t.colIndex[bracketColumn(rec.Bracket)]
		if !ok {
			return nil, newStructuralInputError("reach: reach record for cell %v has unknown bracket %q", rec.Cell, rec.Bracket)
		}
		t.data.AddVal(float64(rec.ReachTotal), i, j)
		t.data.AddVal(float64(rec.ResidentTotal), i, t.colIndex[ColResidentTotal])
		t.data.AddVal(float64(rec.CircTotal), i, t.colIndex[ColCircTotal])
		t.data.AddVal(float64(rec.ReachMale), i, t.colIndex[ColReachMale])
		t.data.AddVal(float64(rec.ReachFemale), i, t.colIndex[ColReachFemale])
		t.data.AddVal(float64(rec.ReachTotal), i, t.colIndex[ColReachTotal])
	}
	return t, nil
}

// ringSuffix names the expanded copy of a column.
func ringSuffix(column string, k int) string {
	return fmt.Sprintf("%s_%dring", column, k)
}

// Expand adds, for every column of t, a companion column holding the
// sum of that column over each cell's k-ring neighborhood (the cell
// itself plus all cells within k adjacency steps). Neighbors outside
// the grid or absent from the table contribute 0. The input columns
// are preserved unchanged.
func (t *MetricTable) Expand(adj Adjacency, k int) (*MetricTable, error) {
	if k < 1 {
		return nil, newConfigurationError("reach: expansion radius %d must be at least 1", k)
	}
	if adj == nil {
		return nil, newConfigurationError("reach: missing grid adjacency for expansion")
	}
	columns := make([]string, 0, 2*len(t.Columns))
	columns = append(columns, t.Columns...)
	for _, c := range t.Columns {
		columns = append(columns, ringSuffix(c, k))
	}
	o, err := NewMetricTable(t.Cells, columns)
	if err != nil {
		return nil, err
	}
	for i, cell := range t.Cells {
		for j := range t.Columns {
			o.data.Set(t.data.Get(i, j), i, j)
		}
		for _, n := range adj.Neighbors(cell, k) {
			ni, ok := t.cellIndex[n]
			if !ok {
				continue
			}
			for j := range t.Columns {
				o.data.AddVal(t.data.Get(ni, j), i, len(t.Columns)+j)
			}
		}
	}
	return o, nil
}
