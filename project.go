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
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/requestcache"
	"github.com/tealeg/xlsx"
)

// A SexRatioTable maps age brackets to the number of females per 100
// males in that bracket. The ratios are province-level coefficients
// applied uniformly to every areal unit.
type SexRatioTable map[AgeBracket]float64

// Split divides a total population count into male and female counts
// using the bracket's ratio: male is rounded once and female is the
// remainder, so male+female == total exactly, by construction.
// Brackets absent from the table are rejected, never defaulted.
func (t SexRatioTable) Split(bracket AgeBracket, total float64) (male, female float64, err error) {
	if len(t) == 0 {
		return 0, 0, newConfigurationError("reach: sex ratio table is missing")
	}
	ratio, ok := t[bracket]
	if !ok {
		return 0, 0, newStructuralInputError("reach: age bracket %q is absent from the sex ratio table", bracket)
	}
	if total < 0 {
		return 0, 0, newDataIntegrityError("reach: negative population total %g in bracket %q", total, bracket)
	}
	male = math.Round(total / (1 + ratio/100))
	female = total - male
	return male, female, nil
}

// check validates the bracket labels and ratio values in t.
func (t SexRatioTable) check() error {
	for bracket, ratio := range t {
		if !ValidBracket(bracket) {
			return newStructuralInputError("reach: sex ratio table has unknown age bracket %q", bracket)
		}
		if ratio <= 0 || math.IsNaN(ratio) {
			return newStructuralInputError("reach: sex ratio for bracket %q is %g; it must be positive", bracket, ratio)
		}
	}
	return nil
}

type sexRatioFile struct {
	Ratios map[string]float64 `toml:"ratios"`
}

// ReadSexRatioTOML reads a sex-ratio table from a TOML file with a
// single [ratios] section mapping bracket labels to females per 100
// males.
func ReadSexRatioTOML(filename string) (SexRatioTable, error) {
	var f sexRatioFile
	if _, err := toml.DecodeFile(filename, &f); err != nil {
		return nil, fmt.Errorf("reach: reading sex ratio file: %v", err)
	}
	if len(f.Ratios) == 0 {
		return nil, newConfigurationError("reach: sex ratio file %s has no ratios", filename)
	}
	t := make(SexRatioTable, len(f.Ratios))
	for b, r := range f.Ratios {
		t[AgeBracket(b)] = r
	}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

// excelCache holds previously opened workbooks to avoid reading the
// same file multiple times.
var excelCache *requestcache.Cache

var loadExcelCacheOnce sync.Once

func loadExcelFile(fileName string) (*xlsx.File, error) {
	loadExcelCacheOnce.Do(func() {
		excelCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			f, err := xlsx.OpenFile(req.(string))
			if err != nil {
				return nil, fmt.Errorf("reach: opening xlsx file: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Memory(100))
	})
	r := excelCache.NewRequest(context.Background(), fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// ReadSexRatioXLSX reads a sex-ratio table from the given sheet of an
// Excel workbook. The first column holds bracket labels and the second
// females per 100 males; the first row is a header. Reading stops at
// the first empty label.
func ReadSexRatioXLSX(fileName, sheet string) (SexRatioTable, error) {
	f, err := loadExcelFile(fileName)
	if err != nil {
		return nil, err
	}
	s, ok := f.Sheet[sheet]
	if !ok {
		return nil, fmt.Errorf("reach: reading sex ratio table; no sheet %s", sheet)
	}
	t := make(SexRatioTable)
	for j := 1; j < s.MaxRow; j++ {
		label := strings.TrimSpace(s.Cell(j, 0).Value)
		if label == "" {
			break
		}
		ratio, err := s.Cell(j, 1).Float()
		if err != nil {
			return nil, newStructuralInputError("reach: sex ratio sheet %s row %d: %v", sheet, j, err)
		}
		t[AgeBracket(label)] = ratio
	}
	if len(t) == 0 {
		return nil, newConfigurationError("reach: sex ratio sheet %s is empty", sheet)
	}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}
