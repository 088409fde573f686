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
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialreach/reach"
)

// Log is the logger used by the commands in this package.
var Log logrus.FieldLogger = logrus.StandardLogger()

// Run runs the full reach pipeline as specified by cfg: grid creation,
// census and sex-ratio loading, areal interpolation, trip-leg
// aggregation, integration, neighborhood expansion, and shapefile
// output.
func Run(cfg *viper.Viper) error {
	gc, err := GridConfig(cfg)
	if err != nil {
		return err
	}
	cc, err := CensusConfig(cfg)
	if err != nil {
		return err
	}
	circ, err := CirculationConfig(cfg)
	if err != nil {
		return err
	}
	outputFile, err := checkOutputFile(cfg.GetString("OutputFile"))
	if err != nil {
		return err
	}
	outputVars, err := checkOutputVars(GetStringMapString("OutputVariables", cfg))
	if err != nil {
		return err
	}
	o, err := reach.NewOutputter(outputFile, outputVars, nil)
	if err != nil {
		return err
	}

	boundaryFile := os.ExpandEnv(cfg.GetString("BoundaryFile"))
	Log.WithFields(logrus.Fields{
		"file": boundaryFile,
	}).Info("reading city boundary")
	boundary, err := ReadBoundary(boundaryFile)
	if err != nil {
		return err
	}

	tripLegFile := os.ExpandEnv(cfg.GetString("TripLegFile"))
	Log.WithFields(logrus.Fields{
		"file": tripLegFile,
	}).Info("reading trip legs")
	legs, err := ReadTripLegs(tripLegFile)
	if err != nil {
		return err
	}

	cLog := make(chan string)
	go func() {
		for msg := range cLog {
			Log.Info(msg)
		}
	}()
	defer close(cLog)

	e := &reach.Engine{
		InitFuncs: []reach.Stage{
			reach.BuildGrid(gc, boundary),
			reach.LoadCensus(cc),
			reach.LoadSexRatios(
				os.ExpandEnv(cfg.GetString("SexRatioFile")),
				cfg.GetString("SexRatioSheet")),
		},
		RunFuncs: []reach.Stage{
			reach.ComputeWeights(),
			reach.AggregateCirculation(circ, legs),
			reach.IntegrateReach(),
		},
		CleanupFuncs: []reach.Stage{
			reach.WriteShapefile(o),
			reach.LogSummary(cLog),
		},
	}
	if k := cfg.GetInt("ExpandRadius"); k > 0 {
		e.RunFuncs = append(e.RunFuncs, reach.ExpandReach(k))
	}

	Log.WithFields(logrus.Fields{
		"resolution": gc.Resolution,
	}).Info("initializing reach engine")
	if err := e.Init(); err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"cells": e.Grid.Len(),
		"units": len(e.Units),
		"legs":  len(legs),
	}).Info("running reach computation")
	if err := e.Run(); err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"file": outputFile,
	}).Info("writing output")
	return e.Cleanup()
}

// Grid creates the hexagonal analysis grid specified by cfg and saves
// its cell geometries and ids to the output shapefile.
func Grid(cfg *viper.Viper) error {
	gc, err := GridConfig(cfg)
	if err != nil {
		return err
	}
	outputFile, err := checkOutputFile(cfg.GetString("OutputFile"))
	if err != nil {
		return err
	}
	boundary, err := ReadBoundary(os.ExpandEnv(cfg.GetString("BoundaryFile")))
	if err != nil {
		return err
	}
	g, err := gc.NewHexGrid(boundary)
	if err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{
		"resolution": gc.Resolution,
		"cells":      g.Len(),
		"file":       outputFile,
	}).Info("writing grid")
	return g.WriteToShp(outputFile)
}
