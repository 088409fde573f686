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

package reachutil

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// TestRun exercises the whole pipeline through the command
// configuration layer.
func TestRun(t *testing.T) {
	dir := t.TempDir()

	boundaryFile := filepath.Join(dir, "boundary.geojson")
	boundary := `{"type":"Polygon","coordinates":[[[-0.01,-0.01],[0.01,-0.01],[0.01,0.01],[-0.01,0.01],[-0.01,-0.01]]]}`
	if err := ioutil.WriteFile(boundaryFile, []byte(boundary), 0644); err != nil {
		t.Fatal(err)
	}

	censusFile := filepath.Join(dir, "census.shp")
	fields := []goshp.Field{
		goshp.StringField("RADIO", 16),
		goshp.FloatField("POP_TOT", 14, 2),
		goshp.FloatField("POP_30_34", 14, 2),
	}
	enc, err := shp.NewEncoderFromFields(censusFile, goshp.POLYGON, fields...)
	if err != nil {
		t.Fatal(err)
	}
	unit := geom.Polygon{{
		{X: -0.002, Y: -0.002}, {X: 0.002, Y: -0.002},
		{X: 0.002, Y: 0.002}, {X: -0.002, Y: 0.002},
		{X: -0.002, Y: -0.002},
	}}
	if err := enc.EncodeFields(unit, "u1", 50.0, 50.0); err != nil {
		t.Fatal(err)
	}
	enc.Close()

	ratioFile := filepath.Join(dir, "ratios.toml")
	if err := ioutil.WriteFile(ratioFile, []byte("[ratios]\n\"30-34\" = 110.0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	legFile := filepath.Join(dir, "legs.csv")
	legs := `rider_id,weight,origin_lon,origin_lat,dest_lon,dest_lat,origin_juris,dest_juris,age,gender
card1,1,0.0,0.0,0.5,0.5,2000,9000,31,F
`
	if err := ioutil.WriteFile(legFile, []byte(legs), 0644); err != nil {
		t.Fatal(err)
	}

	outFile := filepath.Join(dir, "reach.shp")
	settings := map[string]interface{}{
		"BoundaryFile":          boundaryFile,
		"Census.CensusFile":     censusFile,
		"Census.BracketColumns": `{"POP_30_34":"30-34"}`,
		"SexRatioFile":          ratioFile,
		"TripLegFile":           legFile,
		"OutputFile":            outFile,
	}
	for k, v := range settings {
		Cfg.Set(k, v)
	}

	if err := Run(Cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(outFile); err != nil {
		t.Errorf("missing output shapefile: %v", err)
	}
}
