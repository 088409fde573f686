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
	"math"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

func TestBracketForAge(t *testing.T) {
	tests := []struct {
		age  float64
		want AgeBracket
	}{
		{0, "00-04"},
		{4.9, "00-04"},
		{5, "05-09"},
		{37, "35-39"},
		{99, "95-99"},
		{100, "100+"},
		{117, "100+"},
		{math.NaN(), BracketUnknown},
		{-1, BracketUnknown},
	}
	for _, test := range tests {
		if got := BracketForAge(test.age); got != test.want {
			t.Errorf("BracketForAge(%g) = %q; want %q", test.age, got, test.want)
		}
	}
}

func TestValidBracket(t *testing.T) {
	for _, b := range AgeBrackets {
		if !ValidBracket(b) {
			t.Errorf("canonical bracket %q reported invalid", b)
		}
	}
	for _, b := range []AgeBracket{BracketUnknown, "0-4", "00–04", ""} {
		if ValidBracket(b) {
			t.Errorf("bracket %q reported valid", b)
		}
	}
}

// writeCensusShp writes a single-unit census shapefile for reading
// back in the tests.
func writeCensusShp(t *testing.T, fileName, id string, total, young, old float64) {
	t.Helper()
	fields := []goshp.Field{
		goshp.StringField("RADIO", 16),
		goshp.FloatField("POP_TOT", 14, 2),
		goshp.FloatField("POP_00_04", 14, 2),
		goshp.FloatField("POP_80_84", 14, 2),
	}
	e, err := shp.NewEncoderFromFields(fileName, goshp.POLYGON, fields...)
	if err != nil {
		t.Fatal(err)
	}
	p := geom.Polygon{{
		{X: -58.4, Y: -34.6}, {X: -58.3, Y: -34.6},
		{X: -58.3, Y: -34.5}, {X: -58.4, Y: -34.5},
		{X: -58.4, Y: -34.6},
	}}
	if err := e.EncodeFields(p, id, total, young, old); err != nil {
		t.Fatal(err)
	}
	e.Close()
}

func TestReadUnits(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "census.shp")
	writeCensusShp(t, fileName, "020010101", 120, 30, 5)

	config := CensusConfig{
		CensusFile:  fileName,
		IDColumn:    "RADIO",
		TotalColumn: "POP_TOT",
		BracketColumns: map[string]string{
			"POP_00_04": "00-04",
			"POP_80_84": "80-84",
		},
	}
	units, err := config.ReadUnits()
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 1 {
		t.Fatalf("read %d units; want 1", len(units))
	}
	u := units[0]
	if u.ID != "020010101" {
		t.Errorf("unit id = %q; want 020010101", u.ID)
	}
	if u.TotalPop != 120 {
		t.Errorf("total population = %g; want 120", u.TotalPop)
	}
	if u.BracketPop["00-04"] != 30 {
		t.Errorf("bracket 00-04 population = %g; want 30", u.BracketPop["00-04"])
	}
	if u.BracketPop["80-84"] != 5 {
		t.Errorf("bracket 80-84 population = %g; want 5", u.BracketPop["80-84"])
	}
	if u.Polygonal == nil || u.Polygonal.Area() <= 0 {
		t.Error("unit has empty geometry")
	}
}

func TestReadUnitsNegativePopulation(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "census.shp")
	writeCensusShp(t, fileName, "x1", 120, -3, 5)

	config := CensusConfig{
		CensusFile:  fileName,
		IDColumn:    "RADIO",
		TotalColumn: "POP_TOT",
		BracketColumns: map[string]string{
			"POP_00_04": "00-04",
			"POP_80_84": "80-84",
		},
	}
	_, err := config.ReadUnits()
	if err == nil {
		t.Fatal("negative population did not cause an error")
	}
	var derr *DataIntegrityError
	if !errors.As(err, &derr) {
		t.Errorf("error has type %T; want *DataIntegrityError", err)
	}
}

func TestReadUnitsMissingColumn(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "census.shp")
	writeCensusShp(t, fileName, "x1", 120, 30, 5)

	config := CensusConfig{
		CensusFile:  fileName,
		IDColumn:    "RADIO",
		TotalColumn: "POP_TOT",
		BracketColumns: map[string]string{
			"NO_SUCH": "00-04",
		},
	}
	_, err := config.ReadUnits()
	if err == nil {
		t.Fatal("missing attribute column did not cause an error")
	}
	var serr *StructuralInputError
	if !errors.As(err, &serr) {
		t.Errorf("error has type %T; want *StructuralInputError", err)
	}
}

func TestReadUnitsBadBracketLabel(t *testing.T) {
	config := CensusConfig{
		CensusFile:  "census.shp",
		IDColumn:    "RADIO",
		TotalColumn: "POP_TOT",
		BracketColumns: map[string]string{
			"POP_00_04": "0-4",
		},
	}
	_, err := config.ReadUnits()
	if err == nil {
		t.Fatal("unknown bracket label did not cause an error")
	}
	var serr *StructuralInputError
	if !errors.As(err, &serr) {
		t.Errorf("error has type %T; want *StructuralInputError", err)
	}
}

func TestReadUnitsEmptyConfig(t *testing.T) {
	var config CensusConfig
	_, err := config.ReadUnits()
	if err == nil {
		t.Fatal("empty config did not cause an error")
	}
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Errorf("error has type %T; want *ConfigurationError", err)
	}
}
