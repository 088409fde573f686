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
	"errors"
	"testing"
)

func TestBracketColumn(t *testing.T) {
	tests := []struct {
		in   AgeBracket
		want string
	}{
		{"00-04", "a00_04"},
		{"95-99", "a95_99"},
		{"100+", "a100"},
		{BracketUnknown, "aunk"},
	}
	for _, test := range tests {
		if got := bracketColumn(test.in); got != test.want {
			t.Errorf("bracketColumn(%q) = %q; want %q", test.in, got, test.want)
		}
	}
	// Every column name must be usable as a shapefile attribute.
	for _, b := range append([]AgeBracket{BracketUnknown}, AgeBrackets...) {
		if err := checkOutputNames(map[string]string{bracketColumn(b): ""}); err != nil {
			t.Errorf("bracket %q: %v", b, err)
		}
	}
}

func TestPivot(t *testing.T) {
	records := []ReachRecord{
		{Cell: cellA, Bracket: "30-34",
			ResidentMale: 3, ResidentFemale: 4, ResidentTotal: 7,
			CircMale: 1, CircFemale: 2, CircTotal: 3,
			ReachMale: 4, ReachFemale: 6, ReachTotal: 10},
		{Cell: cellA, Bracket: "35-39",
			ResidentMale: 1, ResidentFemale: 1, ResidentTotal: 2,
			ReachMale: 1, ReachFemale: 1, ReachTotal: 2},
		{Cell: cellB, Bracket: BracketUnknown,
			CircTotal: 5, ReachTotal: 5, ReachFemale: 5, CircFemale: 5},
	}
	table, err := Pivot(records)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Cells) != 2 {
		t.Fatalf("table has %d cells; want 2", len(table.Cells))
	}
	tests := []struct {
		cell   CellID
		column string
		want   float64
	}{
		{cellA, "a30_34", 10},
		{cellA, "a35_39", 2},
		{cellA, "a00_04", 0},
		{cellA, ColResidentTotal, 9},
		{cellA, ColCircTotal, 3},
		{cellA, ColReachMale, 5},
		{cellA, ColReachFemale, 7},
		{cellA, ColReachTotal, 12},
		{cellB, "aunk", 5},
		{cellB, ColReachTotal, 5},
		{cellB, ColResidentTotal, 0},
	}
	for _, test := range tests {
		if got := table.Get(test.cell, test.column); got != test.want {
			t.Errorf("cell %v column %s = %g; want %g", test.cell, test.column, got, test.want)
		}
	}
}

// fakeAdjacency reads neighborhoods from a map, standing in for the
// hexagonal grid.
type fakeAdjacency map[CellID][]CellID

func (a fakeAdjacency) Neighbors(center CellID, k int) []CellID { return a[center] }

// Expanding with k=1 sums each cell with its immediate neighbors: a
// cell with 10, a neighbor with 5, and a far cell with 1000 outside
// the ring gives an expanded value of 15.
func TestExpand(t *testing.T) {
	far := CellID{Res: testRes, Q: 30, R: 30}
	table, err := NewMetricTable([]CellID{cellA, cellB, far}, []string{ColReachTotal})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []struct {
		cell CellID
		val  float64
	}{{cellA, 10}, {cellB, 5}, {far, 1000}} {
		if err := table.Set(v.val, v.cell, ColReachTotal); err != nil {
			t.Fatal(err)
		}
	}
	adj := fakeAdjacency{
		cellA: {cellA, cellB},
		cellB: {cellB, cellA},
		far:   {far},
	}
	expanded, err := table.Expand(adj, 1)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		cell CellID
		col  string
		want float64
	}{
		// Raw columns are preserved.
		{cellA, ColReachTotal, 10},
		{cellB, ColReachTotal, 5},
		{far, ColReachTotal, 1000},
		// Ring sums include the cell itself and its neighbors only.
		{cellA, ColReachTotal + "_1ring", 15},
		{cellB, ColReachTotal + "_1ring", 15},
		{far, ColReachTotal + "_1ring", 1000},
	}
	for _, test := range tests {
		if got := expanded.Get(test.cell, test.col); got != test.want {
			t.Errorf("cell %v column %s = %g; want %g", test.cell, test.col, got, test.want)
		}
	}
}

// Ring sums are never smaller than the cell's own value when all
// values are non-negative.
func TestExpandMonotone(t *testing.T) {
	g := newTestGrid(t, 800)
	ids := make([]CellID, len(g.Cells))
	for i, c := range g.Cells {
		ids[i] = c.ID
	}
	table, err := NewMetricTable(ids, []string{ColReachTotal})
	if err != nil {
		t.Fatal(err)
	}
	for i, id := range ids {
		if err := table.Set(float64(i%17), id, ColReachTotal); err != nil {
			t.Fatal(err)
		}
	}
	expanded, err := table.Expand(g, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		own := expanded.Get(id, ColReachTotal)
		ring := expanded.Get(id, ColReachTotal+"_1ring")
		if ring < own {
			t.Errorf("cell %v: ring sum %g < own value %g", id, ring, own)
		}
	}
}

func TestExpandErrors(t *testing.T) {
	table, err := NewMetricTable([]CellID{cellA}, []string{ColReachTotal})
	if err != nil {
		t.Fatal(err)
	}
	var cerr *ConfigurationError
	if _, err := table.Expand(fakeAdjacency{}, 0); !errors.As(err, &cerr) {
		t.Errorf("radius 0 returned %v; want *ConfigurationError", err)
	}
	if _, err := table.Expand(nil, 1); !errors.As(err, &cerr) {
		t.Errorf("nil adjacency returned %v; want *ConfigurationError", err)
	}
}

func TestMetricTableDuplicates(t *testing.T) {
	var cerr *ConfigurationError
	if _, err := NewMetricTable([]CellID{cellA, cellA}, []string{"x"}); !errors.As(err, &cerr) {
		t.Errorf("duplicate cells returned %v; want *ConfigurationError", err)
	}
	if _, err := NewMetricTable([]CellID{cellA}, []string{"x", "x"}); !errors.As(err, &cerr) {
		t.Errorf("duplicate columns returned %v; want *ConfigurationError", err)
	}
}
