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
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/lnashier/viper"
	"github.com/spatialreach/reach"
	"github.com/spf13/cast"
)

// GridConfig reads the grid configuration from cfg.
func GridConfig(cfg *viper.Viper) (*reach.HexGridConfig, error) {
	c := reach.HexGridConfig{
		Resolution: cfg.GetInt("Grid.Resolution"),
		Proj:       os.ExpandEnv(cfg.GetString("Grid.Proj")),
	}
	if c.Proj == "" {
		return nil, fmt.Errorf("reach: parsing grid configuration: Grid.Proj is not specified")
	}
	return &c, nil
}

// CensusConfig reads the census configuration from cfg.
func CensusConfig(cfg *viper.Viper) (*reach.CensusConfig, error) {
	c := reach.CensusConfig{
		CensusFile:     os.ExpandEnv(cfg.GetString("Census.CensusFile")),
		IDColumn:       os.ExpandEnv(cfg.GetString("Census.IDColumn")),
		TotalColumn:    os.ExpandEnv(cfg.GetString("Census.TotalColumn")),
		BracketColumns: GetStringMapString("Census.BracketColumns", cfg),
	}
	for k, v := range c.BracketColumns {
		c.BracketColumns[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return &c, nil
}

// CirculationConfig reads the trip-leg aggregation configuration
// from cfg.
func CirculationConfig(cfg *viper.Viper) (*reach.CirculationConfig, error) {
	c := reach.CirculationConfig{
		Resolution:      cfg.GetInt("Grid.Resolution"),
		JurisdictionMin: cfg.GetInt("Circulation.JurisdictionMin"),
		JurisdictionMax: cfg.GetInt("Circulation.JurisdictionMax"),
	}
	if c.JurisdictionMin > c.JurisdictionMax {
		return nil, fmt.Errorf("reach: parsing circulation configuration: jurisdiction range [%d, %d] is empty",
			c.JurisdictionMin, c.JurisdictionMax)
	}
	return &c, nil
}

// ReadBoundary returns the city boundary polygon in the given GeoJSON
// file.
func ReadBoundary(fileName string) (geom.Polygon, error) {
	f, err := os.Open(os.ExpandEnv(fileName))
	if err != nil {
		return nil, fmt.Errorf("reach: opening boundary file: %w", err)
	}
	defer f.Close()
	b, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reach: reading boundary file: %w", err)
	}
	j, err := geojson.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("reach: decoding BoundaryFile: %w", err)
	}
	var boundary geom.Polygon
	switch g := j.(type) {
	case geom.Polygon:
		boundary = g
	case geom.MultiPolygon:
		for _, p := range g {
			boundary = append(boundary, p...)
		}
	default:
		return nil, fmt.Errorf("reach: invalid boundary geometry type %T", j)
	}
	return boundary, nil
}

// tripLegColumns are the required columns of a trip-leg CSV file, in
// any order.
var tripLegColumns = []string{
	"rider_id", "weight",
	"origin_lon", "origin_lat", "dest_lon", "dest_lat",
	"origin_juris", "dest_juris",
	"age", "gender",
}

// ReadTripLegs reads transit trip legs from a CSV file with a header
// row. Empty age values mean the rider's age is unknown.
func ReadTripLegs(fileName string) ([]reach.TripLeg, error) {
	f, err := os.Open(os.ExpandEnv(fileName))
	if err != nil {
		return nil, fmt.Errorf("reach: opening trip-leg file: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reach: reading trip-leg header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range tripLegColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("reach: trip-leg file %s is missing column %s", fileName, name)
		}
	}
	var legs []reach.TripLeg
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reach: trip-leg file line %d: %w", line, err)
		}
		get := func(name string) string { return strings.TrimSpace(rec[index[name]]) }
		getF := func(name string) (float64, error) {
			v, err := strconv.ParseFloat(get(name), 64)
			if err != nil {
				return 0, fmt.Errorf("reach: trip-leg file line %d column %s: %w", line, name, err)
			}
			return v, nil
		}
		getI := func(name string) (int, error) {
			v, err := strconv.Atoi(get(name))
			if err != nil {
				return 0, fmt.Errorf("reach: trip-leg file line %d column %s: %w", line, name, err)
			}
			return v, nil
		}

		leg := reach.TripLeg{
			RiderID: get("rider_id"),
			Gender:  get("gender"),
			Age:     math.NaN(),
		}
		if leg.Weight, err = getF("weight"); err != nil {
			return nil, err
		}
		if leg.Origin.X, err = getF("origin_lon"); err != nil {
			return nil, err
		}
		if leg.Origin.Y, err = getF("origin_lat"); err != nil {
			return nil, err
		}
		if leg.Destination.X, err = getF("dest_lon"); err != nil {
			return nil, err
		}
		if leg.Destination.Y, err = getF("dest_lat"); err != nil {
			return nil, err
		}
		if leg.OriginJurisdiction, err = getI("origin_juris"); err != nil {
			return nil, err
		}
		if leg.DestinationJurisdiction, err = getI("dest_juris"); err != nil {
			return nil, err
		}
		if s := get("age"); s != "" {
			if leg.Age, err = getF("age"); err != nil {
				return nil, err
			}
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`reach: you need to specify an output file configuration variable (for example: OutputFile="output.shp")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("reach: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkOutputVars removes end lines and expands environment variables
// in the output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("reach: there are no variables specified for output. Please fill in " +
			"the OutputVariables configuration and try again")
	}
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		vars[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return vars, nil
}

// GetStringMapString returns a map[string]string from a viper
// configuration, accounting for the fact that it might be a json
// object if it was set from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("reach: invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}
