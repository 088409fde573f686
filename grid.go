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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
	goshp "github.com/jonas-p/go-shp"
)

// GeographicProj is the spatial reference of all input and output
// geometry, in Proj4 format.
const GeographicProj = "+proj=longlat +datum=WGS84 +no_defs"

// MaxResolution is the finest grid resolution the cell id encoding supports.
const MaxResolution = 15

// baseEdgeMeters is the hexagon edge length at resolution 0 in the
// working coordinate reference system. Each finer resolution shrinks
// cell area sevenfold, so the edge at resolution 9 is approximately
// 174 m.
const baseEdgeMeters = 1107712.591

// EdgeLength returns the hexagon edge length in working-CRS units
// for the given grid resolution.
func EdgeLength(resolution int) float64 {
	return baseEdgeMeters / math.Pow(7, float64(resolution)/2)
}

// A CellID uniquely and stably identifies a hexagonal grid cell:
// axial coordinates Q and R at resolution Res. The same boundary and
// resolution always yield the same ids.
type CellID struct {
	Res, Q, R int
}

func (id CellID) String() string {
	return fmt.Sprintf("%d/%d/%d", id.Res, id.Q, id.R)
}

// ParseCellID parses the string form "res/q/r" of a cell id.
func ParseCellID(s string) (CellID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return CellID{}, fmt.Errorf("reach: invalid cell id %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return CellID{}, fmt.Errorf("reach: invalid cell id %q: %v", s, err)
		}
		vals[i] = v
	}
	return CellID{Res: vals[0], Q: vals[1], R: vals[2]}, nil
}

// A Cell is one hexagonal grid cell. The embedded geometry is in
// geographic coordinates and is immutable after grid creation.
type Cell struct {
	geom.Polygonal

	ID CellID
}

// projCell holds a cell's geometry in the grid's working (projected)
// coordinate reference system, which is what all area math runs in.
type projCell struct {
	geom.Polygonal

	cell *Cell
}

// HexGridConfig holds the configuration for creating a hexagonal
// analysis grid.
type HexGridConfig struct {
	// Resolution sets the cell size; see EdgeLength.
	Resolution int

	// Proj gives the working coordinate reference system for area
	// computations in Proj4 format. It must be a projected (not
	// angular) reference; an equal-area projection gives the most
	// faithful allocation weights.
	Proj string
}

// HexGrid is a set of hexagonal cells covering a city boundary at a
// fixed resolution. It is immutable once created.
type HexGrid struct {
	Resolution int
	Cells      []*Cell

	edge   float64
	sr     *proj.SR
	geogSR *proj.SR
	toWork proj.Transformer
	toGeog proj.Transformer
	index  *rtree.Rtree
	byID   map[CellID]*projCell
}

// NewHexGrid creates the set of hexagonal cells covering boundary,
// which must be in geographic coordinates. Multi-part boundaries are
// processed per part and the resulting cell sets unioned, so the
// operation is idempotent; holes in the boundary are excluded. A
// degenerate ring, or geometry still invalid after a single
// validity-repair pass, is a fatal structural error.
func (config *HexGridConfig) NewHexGrid(boundary geom.Polygonal) (*HexGrid, error) {
	if config.Resolution < 0 || config.Resolution > MaxResolution {
		return nil, newConfigurationError("reach: grid resolution %d is outside [0, %d]", config.Resolution, MaxResolution)
	}
	if boundary == nil {
		return nil, newStructuralInputError("reach: missing boundary polygon")
	}
	sr, err := proj.Parse(config.Proj)
	if err != nil {
		return nil, newConfigurationError("reach: while parsing grid projection: %v", err)
	}
	if sr.Name == "longlat" {
		return nil, newConfigurationError("reach: grid projection %q is angular; areas must be computed in a projected reference", config.Proj)
	}
	geogSR, err := proj.Parse(GeographicProj)
	if err != nil {
		panic(err)
	}
	toWork, err := geogSR.NewTransform(sr)
	if err != nil {
		return nil, newConfigurationError("reach: while creating grid transform: %v", err)
	}
	toGeog, err := sr.NewTransform(geogSR)
	if err != nil {
		return nil, newConfigurationError("reach: while creating inverse grid transform: %v", err)
	}

	g := &HexGrid{
		Resolution: config.Resolution,
		edge:       EdgeLength(config.Resolution),
		sr:         sr,
		geogSR:     geogSR,
		toWork:     toWork,
		toGeog:     toGeog,
		index:      rtree.NewTree(25, 50),
		byID:       make(map[CellID]*projCell),
	}

	for i, part := range boundary.Polygons() {
		repaired, err := repairPolygon(part)
		if err != nil {
			return nil, fmt.Errorf("reach: boundary part %d: %w", i, err)
		}
		gg, err := repaired.Transform(toWork)
		if err != nil {
			return nil, newStructuralInputError("reach: reprojecting boundary part %d: %v", i, err)
		}
		g.cover(gg.(geom.Polygonal))
	}
	if len(g.byID) == 0 {
		return nil, newStructuralInputError("reach: boundary covers no grid cells at resolution %d", config.Resolution)
	}

	// Sort ids so cell order is deterministic across runs.
	ids := make([]CellID, 0, len(g.byID))
	for id := range g.byID {
		ids = append(ids, id)
	}
	sortCellIDs(ids)
	g.Cells = make([]*Cell, len(ids))
	for i, id := range ids {
		pc := g.byID[id]
		gg, err := pc.Polygonal.Transform(toGeog)
		if err != nil {
			return nil, fmt.Errorf("reach: unprojecting cell %v: %v", id, err)
		}
		pc.cell.Polygonal = gg.(geom.Polygonal)
		g.Cells[i] = pc.cell
		g.index.Insert(pc)
	}
	return g, nil
}

// cover adds to g every hexagon with a non-empty intersection with
// part, which is in the working CRS.
func (g *HexGrid) cover(part geom.Polygonal) {
	b := part.Bounds()
	e := g.edge
	rMin := int(math.Floor(b.Min.Y/(1.5*e))) - 1
	rMax := int(math.Ceil(b.Max.Y/(1.5*e))) + 1
	for r := rMin; r <= rMax; r++ {
		qMin := int(math.Floor(b.Min.X/(sqrt3*e)-float64(r)/2)) - 1
		qMax := int(math.Ceil(b.Max.X/(sqrt3*e)-float64(r)/2)) + 1
		for q := qMin; q <= qMax; q++ {
			id := CellID{Res: g.Resolution, Q: q, R: r}
			if _, ok := g.byID[id]; ok {
				continue
			}
			hex := g.hexagon(q, r)
			isect := part.Intersection(hex)
			if isect == nil || isect.Area() == 0 {
				continue
			}
			g.byID[id] = &projCell{
				Polygonal: hex,
				cell:      &Cell{ID: id},
			}
		}
	}
}

const sqrt3 = 1.7320508075688772

// center returns the working-CRS center of the hexagon at axial
// coordinates (q, r). Hexagons are pointy-top.
func (g *HexGrid) center(q, r int) (x, y float64) {
	x = g.edge * sqrt3 * (float64(q) + float64(r)/2)
	y = g.edge * 1.5 * float64(r)
	return
}

// hexagon builds the closed, counter-clockwise ring of the hexagon at
// axial coordinates (q, r) in the working CRS.
func (g *HexGrid) hexagon(q, r int) geom.Polygon {
	cx, cy := g.center(q, r)
	ring := make([]geom.Point, 7)
	for i := 0; i < 6; i++ {
		a := (60*float64(i) + 30) * math.Pi / 180
		ring[i] = geom.Point{X: cx + g.edge*math.Cos(a), Y: cy + g.edge*math.Sin(a)}
	}
	ring[6] = ring[0]
	return geom.Polygon{ring}
}

// Cell returns the grid cell with the given id, if it exists.
func (g *HexGrid) Cell(id CellID) (*Cell, bool) {
	pc, ok := g.byID[id]
	if !ok {
		return nil, false
	}
	return pc.cell, true
}

// Len returns the number of cells in the grid.
func (g *HexGrid) Len() int { return len(g.Cells) }

// CellAt returns the cell covering the given geographic point. The
// second return is false if the point maps to no cell in the grid.
func (g *HexGrid) CellAt(p geom.Point) (*Cell, bool) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return nil, false
	}
	gg, err := p.Transform(g.toWork)
	if err != nil {
		return nil, false
	}
	pp := gg.(geom.Point)
	q, r := axialRound(
		(pp.X*sqrt3/3-pp.Y/3)/g.edge,
		pp.Y*2/3/g.edge,
	)
	pc, ok := g.byID[CellID{Res: g.Resolution, Q: q, R: r}]
	if !ok {
		return nil, false
	}
	return pc.cell, true
}

// Neighbors returns the ids of the cells within k axial steps of
// center, including center itself, that exist in the grid. The cost is
// O(k²) per call and does not depend on the grid size.
func (g *HexGrid) Neighbors(center CellID, k int) []CellID {
	var o []CellID
	for dq := -k; dq <= k; dq++ {
		lo, hi := imax(-k, -dq-k), imin(k, -dq+k)
		for dr := lo; dr <= hi; dr++ {
			id := CellID{Res: center.Res, Q: center.Q + dq, R: center.R + dr}
			if _, ok := g.byID[id]; ok {
				o = append(o, id)
			}
		}
	}
	return o
}

// WriteToShp writes the grid cell geometries and ids to a shapefile.
func (g *HexGrid) WriteToShp(filename string) error {
	fileBase := strings.TrimSuffix(filename, filepath.Ext(filename))
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(fileBase + ext)
	}
	fields := []goshp.Field{
		goshp.StringField("cell_id", 24),
		goshp.NumberField("q", 10),
		goshp.NumberField("r", 10),
	}
	e, err := shp.NewEncoderFromFields(fileBase+".shp", goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("reach: creating grid shapefile: %v", err)
	}
	for _, c := range g.Cells {
		if err := e.EncodeFields(c.Polygonal, c.ID.String(), c.ID.Q, c.ID.R); err != nil {
			return fmt.Errorf("reach: writing grid shapefile: %v", err)
		}
	}
	e.Close()
	f, err := os.Create(fileBase + ".prj")
	if err != nil {
		return fmt.Errorf("reach: creating grid prj file: %v", err)
	}
	fmt.Fprint(f, wgs84WKT)
	return f.Close()
}

// axialRound converts fractional axial coordinates to the containing
// hexagon using cube-coordinate rounding.
func axialRound(qf, rf float64) (q, r int) {
	x, z := qf, rf
	y := -x - z
	rx, ry, rz := math.Round(x), math.Round(y), math.Round(z)
	dx, dy, dz := math.Abs(rx-x), math.Abs(ry-y), math.Abs(rz-z)
	switch {
	case dx > dy && dx > dz:
		rx = -ry - rz
	case dy > dz:
		ry = -rx - rz
	default:
		rz = -rx - ry
	}
	return int(rx), int(rz)
}

// repairPolygon checks p for degenerate rings and runs a single
// validity-repair pass (a self-union, which resolves standard
// self-intersections). Geometry that is still empty afterwards is
// unrepairable.
func repairPolygon(p geom.Polygon) (geom.Polygon, error) {
	if len(p) == 0 {
		return nil, newStructuralInputError("empty boundary polygon")
	}
	for i, ring := range p {
		if len(ring) < 3 {
			return nil, newStructuralInputError("ring %d has %d points; polygon rings need at least 3", i, len(ring))
		}
	}
	fixed := p.Union(p)
	if len(fixed) == 0 || fixed.Area() <= 0 {
		return nil, newStructuralInputError("polygon is invalid beyond repair")
	}
	return fixed, nil
}

func sortCellIDs(ids []CellID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Q != ids[j].Q {
			return ids[i].Q < ids[j].Q
		}
		return ids[i].R < ids[j].R
	})
}

func imin(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func imax(a, b int) int {
	if a > b {
		return a
	}
	return b
}
