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
	"runtime"
	"sort"
	"sync"

	"github.com/ctessum/geom"
	"gonum.org/v1/gonum/floats"
)

// An AllocationWeight gives the fraction of a census unit's area that
// falls within one grid cell.
type AllocationWeight struct {
	Unit   string
	Cell   CellID
	Weight float64
}

// A WeightTable holds the allocation weights between census units and
// grid cells. It is pure geometry: allocating a metric is value×weight,
// which is deferred to integration so the table is reused across
// metrics.
type WeightTable struct {
	rows   []AllocationWeight
	byUnit map[string][]AllocationWeight
}

// Rows returns all weights, ordered by unit id and then cell id.
func (t *WeightTable) Rows() []AllocationWeight { return t.rows }

// Unit returns the weights for one census unit.
func (t *WeightTable) Unit(id string) []AllocationWeight { return t.byUnit[id] }

// Len returns the number of (unit, cell) pairs with non-zero overlap.
func (t *WeightTable) Len() int { return len(t.rows) }

// InterpolationWeights computes, for every (cell, unit) pair with a
// non-empty intersection, the fraction of the unit's area inside the
// cell. All areas are measured in the grid's projected working
// reference; unit geometries stay in geographic coordinates. Units
// with zero area yield weight 0 (no rows), never NaN. Each unit's
// overlay is independent, so units are processed in parallel.
func (g *HexGrid) InterpolationWeights(units []*CensusUnit) (*WeightTable, error) {
	nprocs := runtime.GOMAXPROCS(0)
	var mu sync.Mutex
	rows := make([]AllocationWeight, 0, len(units)*4)
	errChan := make(chan error)
	for procnum := 0; procnum < nprocs; procnum++ {
		go func(procnum int) {
			for i := procnum; i < len(units); i += nprocs {
				u := units[i]
				if u.Polygonal == nil {
					errChan <- newStructuralInputError("reach: census unit %s has no geometry", u.ID)
					return
				}
				gg, err := u.Polygonal.Transform(g.toWork)
				if err != nil {
					errChan <- fmt.Errorf("reach: reprojecting census unit %s: %v", u.ID, err)
					return
				}
				up := gg.(geom.Polygonal)
				uArea := up.Area()
				if uArea == 0 {
					// Zero-area unit: weight 0 everywhere, not an error.
					continue
				}
				var local []AllocationWeight
				for _, cI := range g.index.SearchIntersect(up.Bounds()) {
					pc := cI.(*projCell)
					isect := pc.Intersection(up)
					if isect == nil {
						continue
					}
					a := isect.Area()
					if a == 0 {
						continue
					}
					local = append(local, AllocationWeight{
						Unit:   u.ID,
						Cell:   pc.cell.ID,
						Weight: a / uArea,
					})
				}
				mu.Lock()
				rows = append(rows, local...)
				mu.Unlock()
			}
			errChan <- nil
		}(procnum)
	}
	for procnum := 0; procnum < nprocs; procnum++ {
		if err := <-errChan; err != nil {
			return nil, err
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Unit != rows[j].Unit {
			return rows[i].Unit < rows[j].Unit
		}
		if rows[i].Cell.Q != rows[j].Cell.Q {
			return rows[i].Cell.Q < rows[j].Cell.Q
		}
		return rows[i].Cell.R < rows[j].Cell.R
	})
	t := &WeightTable{
		rows:   rows,
		byUnit: make(map[string][]AllocationWeight),
	}
	for _, w := range rows {
		t.byUnit[w.Unit] = append(t.byUnit[w.Unit], w)
	}
	return t, nil
}

// CheckConservation verifies that the weights for each of the given
// units sum to 1 within tol. It is meaningful only for units known to
// be fully covered by the grid.
func (t *WeightTable) CheckConservation(unitIDs []string, tol float64) error {
	sums := make([]float64, 0, 8)
	for _, id := range unitIDs {
		sums = sums[:0]
		for _, w := range t.byUnit[id] {
			sums = append(sums, w.Weight)
		}
		if s := floats.Sum(sums); math.Abs(s-1) > tol {
			return newDataIntegrityError("reach: allocation weights for unit %s sum to %g, not 1", id, s)
		}
	}
	return nil
}
