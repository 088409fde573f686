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
	"io/ioutil"
	"path/filepath"
	"testing"
)

func TestSexRatioSplit(t *testing.T) {
	ratios := SexRatioTable{"30-34": 110}

	// With 110 females per 100 males, a total of 21 splits into
	// male = round(21/2.1) = 10 and female = 21 - 10 = 11.
	male, female, err := ratios.Split("30-34", 21)
	if err != nil {
		t.Fatal(err)
	}
	if male != 10 {
		t.Errorf("male = %g; want 10", male)
	}
	if female != 11 {
		t.Errorf("female = %g; want 11", female)
	}
	if male+female != 21 {
		t.Errorf("male+female = %g; want 21", male+female)
	}
}

func TestSexRatioSplitPreservesTotal(t *testing.T) {
	ratios := SexRatioTable{"00-04": 95.8, "50-54": 104.2}
	for _, total := range []float64{0, 1, 2, 17, 100, 12345} {
		for bracket := range ratios {
			male, female, err := ratios.Split(bracket, total)
			if err != nil {
				t.Fatal(err)
			}
			if male+female != total {
				t.Errorf("bracket %q total %g: male %g + female %g != total", bracket, total, male, female)
			}
			if male < 0 || female < 0 {
				t.Errorf("bracket %q total %g: negative count (male %g, female %g)", bracket, total, male, female)
			}
		}
	}
}

func TestSexRatioSplitErrors(t *testing.T) {
	ratios := SexRatioTable{"30-34": 110}

	var cerr *ConfigurationError
	if _, _, err := (SexRatioTable{}).Split("30-34", 10); !errors.As(err, &cerr) {
		t.Errorf("empty table returned %v; want *ConfigurationError", err)
	}

	var serr *StructuralInputError
	if _, _, err := ratios.Split("35-39", 10); !errors.As(err, &serr) {
		t.Errorf("missing bracket returned %v; want *StructuralInputError", err)
	}

	var derr *DataIntegrityError
	if _, _, err := ratios.Split("30-34", -1); !errors.As(err, &derr) {
		t.Errorf("negative total returned %v; want *DataIntegrityError", err)
	}
}

func TestReadSexRatioTOML(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "ratios.toml")
	data := "[ratios]\n\"00-04\" = 95.8\n\"30-34\" = 110.0\n\"100+\" = 312.5\n"
	if err := ioutil.WriteFile(fileName, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	ratios, err := ReadSexRatioTOML(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if len(ratios) != 3 {
		t.Fatalf("read %d ratios; want 3", len(ratios))
	}
	if ratios["30-34"] != 110 {
		t.Errorf("ratio for 30-34 = %g; want 110", ratios["30-34"])
	}
	if ratios["100+"] != 312.5 {
		t.Errorf("ratio for 100+ = %g; want 312.5", ratios["100+"])
	}
}

func TestReadSexRatioTOMLBadLabel(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "ratios.toml")
	data := "[ratios]\n\"0-4\" = 95.8\n"
	if err := ioutil.WriteFile(fileName, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadSexRatioTOML(fileName)
	if err == nil {
		t.Fatal("unknown bracket label did not cause an error")
	}
	var serr *StructuralInputError
	if !errors.As(err, &serr) {
		t.Errorf("error has type %T; want *StructuralInputError", err)
	}
}

func TestReadSexRatioTOMLNonPositive(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "ratios.toml")
	data := "[ratios]\n\"00-04\" = -5.0\n"
	if err := ioutil.WriteFile(fileName, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadSexRatioTOML(fileName); err == nil {
		t.Fatal("non-positive ratio did not cause an error")
	}
}
