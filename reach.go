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

// Package reach estimates, for every cell of a hexagonal analysis
// grid covering a city, how many people of each age bracket and sex
// can be reached there: residents allocated from census polygons by
// areal interpolation, plus deduplicated transit riders circulating
// through the cell.
package reach

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/ctessum/geom"
)

// Version gives the version number of this version of the model.
const Version = "1.0.0"

// A Stage is a function that operates on the engine as a whole at
// one step of the pipeline.
type Stage func(e *Engine) error

// An Engine holds the state of one reach computation. Stages fill in
// the fields in order; each stage requires the fields earlier stages
// produce.
type Engine struct {
	// Grid is the hexagonal analysis grid.
	Grid *HexGrid

	// Units holds the census areal units.
	Units []*CensusUnit

	// Ratios holds the sex ratio per age bracket.
	Ratios SexRatioTable

	// Weights holds the areal allocation weights between census units
	// and grid cells.
	Weights *WeightTable

	// Circulation holds the deduplicated circulating population rows.
	Circulation []CirculationRow

	// Records holds the integrated per-cell, per-bracket reach.
	Records []ReachRecord

	// Metrics is the wide per-cell metric table, including any
	// neighborhood-expanded columns.
	Metrics *MetricTable

	// InitFuncs are run (in order) at the beginning of the computation.
	InitFuncs []Stage

	// RunFuncs are run (in order) after InitFuncs.
	RunFuncs []Stage

	// CleanupFuncs are run (in order) after RunFuncs.
	CleanupFuncs []Stage
}

// Init initializes the engine by running the InitFuncs.
func (e *Engine) Init() error {
	for _, f := range e.InitFuncs {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the RunFuncs.
func (e *Engine) Run() error {
	for _, f := range e.RunFuncs {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// Cleanup runs the CleanupFuncs.
func (e *Engine) Cleanup() error {
	for _, f := range e.CleanupFuncs {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// BuildGrid returns a stage that tessellates the given city boundary
// into the engine's hexagonal grid.
func BuildGrid(config *HexGridConfig, boundary geom.Polygonal) Stage {
	return func(e *Engine) error {
		g, err := config.NewHexGrid(boundary)
		if err != nil {
			return err
		}
		e.Grid = g
		return nil
	}
}

// LoadCensus returns a stage that reads the census areal units.
func LoadCensus(config *CensusConfig) Stage {
	return func(e *Engine) error {
		units, err := config.ReadUnits()
		if err != nil {
			return err
		}
		e.Units = units
		return nil
	}
}

// LoadSexRatios returns a stage that reads the sex ratio table from
// either a TOML file or an Excel workbook, chosen by file extension.
func LoadSexRatios(fileName, sheet string) Stage {
	return func(e *Engine) error {
		var t SexRatioTable
		var err error
		switch ext := extOf(fileName); ext {
		case ".toml":
			t, err = ReadSexRatioTOML(fileName)
		case ".xlsx":
			t, err = ReadSexRatioXLSX(fileName, sheet)
		default:
			err = newConfigurationError("reach: unsupported sex ratio file type %q", ext)
		}
		if err != nil {
			return err
		}
		e.Ratios = t
		return nil
	}
}

// ComputeWeights returns a stage that computes the areal allocation
// weights between the census units and the grid.
func ComputeWeights() Stage {
	return func(e *Engine) error {
		w, err := e.Grid.InterpolationWeights(e.Units)
		if err != nil {
			return err
		}
		e.Weights = w
		return nil
	}
}

// AggregateCirculation returns a stage that aggregates transit trip
// legs into circulating population rows.
func AggregateCirculation(config *CirculationConfig, legs []TripLeg) Stage {
	return func(e *Engine) error {
		rows, err := config.Aggregate(e.Grid, legs)
		if err != nil {
			return err
		}
		e.Circulation = rows
		return nil
	}
}

// IntegrateReach returns a stage that merges resident and circulating
// population into reach records and pivots them into the metric table.
func IntegrateReach() Stage {
	return func(e *Engine) error {
		records, err := Integrate(e.Units, e.Weights, e.Ratios, e.Circulation)
		if err != nil {
			return err
		}
		e.Records = records
		t, err := Pivot(records)
		if err != nil {
			return err
		}
		e.Metrics = t
		return nil
	}
}

// ExpandReach returns a stage that adds k-ring neighborhood sums to
// the metric table.
func ExpandReach(k int) Stage {
	return func(e *Engine) error {
		t, err := e.Metrics.Expand(e.Grid, k)
		if err != nil {
			return err
		}
		e.Metrics = t
		return nil
	}
}

// WriteShapefile returns a stage that writes the metric table to the
// output shapefile.
func WriteShapefile(o *Outputter) Stage {
	return func(e *Engine) error {
		return o.Write(e.Grid, e.Metrics)
	}
}

// A Summary holds descriptive statistics over the per-cell reach
// totals of the metric table.
type Summary struct {
	Cells           int
	Mean, StdDev    float64
	Min, Max, Total float64
	Elapsed         time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("cells=%d  reach total=%.0f  mean=%.1f  stddev=%.1f  min=%.0f  max=%.0f",
		s.Cells, s.Total, s.Mean, s.StdDev, s.Min, s.Max)
}

// Summarize computes descriptive statistics over the per-cell reach
// totals of the engine's metric table.
func (e *Engine) Summarize() (Summary, error) {
	if e.Metrics == nil {
		return Summary{}, newConfigurationError("reach: summarizing before the metric table is built")
	}
	if !e.Metrics.HasColumn(ColReachTotal) {
		return Summary{}, newConfigurationError("reach: metric table has no column %q", ColReachTotal)
	}
	var st stats.Stats
	var total float64
	for _, id := range e.Metrics.Cells {
		v := e.Metrics.Get(id, ColReachTotal)
		st.Update(v)
		total += v
	}
	s := Summary{
		Cells: len(e.Metrics.Cells),
		Total: total,
	}
	if st.Count() > 0 {
		s.Mean = st.Mean()
		s.Min = st.Min()
		s.Max = st.Max()
	}
	if st.Count() > 1 {
		s.StdDev = st.SampleStandardDeviation()
	}
	return s, nil
}

// LogSummary returns a stage that sends a one-line summary of the
// metric table to c.
func LogSummary(c chan string) Stage {
	start := time.Now()
	return func(e *Engine) error {
		s, err := e.Summarize()
		if err != nil {
			return err
		}
		s.Elapsed = time.Since(start)
		c <- s.String()
		return nil
	}
}

// extOf returns the lowercased file extension of name.
func extOf(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
