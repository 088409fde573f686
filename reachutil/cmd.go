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
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialreach/reach"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to Reach.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Grid.Resolution",
			usage: `
              Grid.Resolution specifies the hexagonal grid resolution.
              Cell area shrinks sevenfold with each unit increase; at
              resolution 9 cells have an edge length of roughly 174 m.`,
			defaultVal: 9,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Grid.Proj",
			usage: `
              Grid.Proj gives the projected coordinate reference used for
              all area computations, in Proj4 format. Input and output
              geometry stays in geographic (longitude, latitude)
              coordinates regardless of this setting.`,
			defaultVal: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "BoundaryFile",
			usage: `
              BoundaryFile is the path to a GeoJSON file holding the city
              boundary polygon in geographic coordinates.`,
			defaultVal: "boundary.geojson",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "Census.CensusFile",
			usage: `
              Census.CensusFile is the path to the shapefile holding the
              census areal units with their population attributes.`,
			defaultVal: "census.shp",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Census.IDColumn",
			usage: `
              Census.IDColumn is the shapefile attribute column holding
              the unique census unit identifier.`,
			defaultVal: "RADIO",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Census.TotalColumn",
			usage: `
              Census.TotalColumn is the shapefile attribute column holding
              the total resident population of each unit.`,
			defaultVal: "POP_TOT",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Census.BracketColumns",
			usage: `
              Census.BracketColumns maps shapefile attribute columns to the
              age bracket labels ("00-04" through "100+") they hold resident
              population counts for.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "SexRatioFile",
			usage: `
              SexRatioFile is the path to the table of females per 100 males
              per age bracket, as either a TOML file or an Excel workbook.`,
			defaultVal: "ratios.toml",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "SexRatioSheet",
			usage: `
              SexRatioSheet is the workbook sheet holding the sex ratio
              table. It is only used when SexRatioFile is an Excel workbook.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "TripLegFile",
			usage: `
              TripLegFile is the path to the CSV file of transit trip legs.`,
			defaultVal: "triplegs.csv",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Circulation.JurisdictionMin",
			usage: `
              Circulation.JurisdictionMin is the lowest jurisdiction code
              (inclusive) considered inside the target city.`,
			defaultVal: 2000,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "Circulation.JurisdictionMax",
			usage: `
              Circulation.JurisdictionMax is the highest jurisdiction code
              (inclusive) considered inside the target city.`,
			defaultVal: 5999,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "ExpandRadius",
			usage: `
              ExpandRadius is the neighborhood radius, in adjacency steps,
              used to add ring-sum columns to the output. Set it to 0 to
              skip expansion.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output shapefile
              location. It can include environment variables.`,
			defaultVal: "reach_output.shp",
			flagsets:   []*pflag.FlagSet{runCmd.PersistentFlags(), gridCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables maps the names of the variables for which data
              should be output to expressions that define how they should be
              calculated from the metric columns.`,
			defaultVal: map[string]string{
				"reach_tot": reach.ColReachTotal,
				"reach_m":   reach.ColReachMale,
				"reach_f":   reach.ColReachFemale,
			},
			flagsets: []*pflag.FlagSet{runCmd.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("REACH")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(gridCmd)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "reach",
	Short: "A tool for estimating per-cell population reach.",
	Long: `Reach covers a city with a hexagonal analysis grid and estimates,
for every cell, the population that can be reached there by age bracket
and sex: residents allocated from census polygons plus transit riders
circulating through the cell.

Configuration can be provided in a configuration file, as command-line
arguments, or by setting environment variables in the format 'REACH_var'
where 'var' is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration
information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of Reach.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Reach v%s\n", reach.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd runs the full reach pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reach computation.",
	Long: `run computes per-cell population reach from the census, sex ratio,
and trip-leg inputs named in the configuration, and writes the result to
the output shapefile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Run(Cfg)
	},
	DisableAutoGenTag: true,
}

// gridCmd creates the analysis grid and saves its geometry.
var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Create the hexagonal analysis grid",
	Long: `grid tessellates the city boundary named in the configuration into
hexagonal cells and saves the cell geometries and ids to the output
shapefile, without running the rest of the pipeline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Grid(Cfg)
	},
	DisableAutoGenTag: true,
}

func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("reach: problem reading configuration file: %v", err)
		}
	}
	return nil
}
