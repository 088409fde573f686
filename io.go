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
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// wgs84WKT is the well-known-text form of the geographic reference all
// output geometry is written in.
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`

// Outputter is a holder for output parameters.
//
// fileName contains the path where the output will be saved.
//
// outputVariables maps the names of the shapefile attribute columns to
// expressions that define how each is calculated from the metric table
// columns. Expressions can use metric column names and functions.
//
// Functions are defined in the outputFunctions variable.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	outputFunctions map[string]govaluate.ExpressionFunction
	exprs           map[string]*govaluate.EvaluableExpression
}

// NewOutputter initializes a new Outputter holder and adds a set of
// default output functions. Default functions include:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'round(x)' which rounds x to the nearest integer.
//
// Output variable names must be usable as shapefile attribute names:
// at most 10 characters, starting with a letter.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("reach: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return (float64)(math.Exp(arg[0].(float64))), nil
		},
		"round": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("reach: got %d arguments for function 'round', but needs 1", len(arg))
			}
			return (float64)(math.Round(arg[0].(float64))), nil
		},
	}
	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	if fileName == "" {
		return nil, newConfigurationError("reach: missing output file name")
	}
	if len(outputVariables) == 0 {
		return nil, newConfigurationError("reach: no output variables specified")
	}
	if err := checkOutputNames(outputVariables); err != nil {
		return nil, err
	}

	o := Outputter{
		fileName:        fileName,
		outputVariables: outputVariables,
		outputFunctions: defaultOutputFuncs,
		exprs:           make(map[string]*govaluate.EvaluableExpression, len(outputVariables)),
	}
	for key, val := range outputVariables {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(val, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("reach: output variable %s: %v", key, err)
		}
		o.exprs[key] = expression
	}
	return &o, nil
}

// removeDuplicates removes all duplicated strings from a slice,
// returning a slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]string)
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = val
		}
	}
	return result
}

// checkOutputNames checks (1) if any output variable names exceed 10
// characters and (2) if any output variable names include characters
// that are unsupported in shapefile field names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		long := len(key) > 10
		noCharError, err := regexp.MatchString("^[A-Za-z]\\w*$", key)
		if err != nil {
			panic(err)
		}
		if long && !noCharError {
			return newConfigurationError("reach: output variable name '%s' exceeds 10 characters and includes unsupported character(s)", key)
		} else if long {
			return newConfigurationError("reach: output variable name '%s' exceeds 10 characters", key)
		} else if !noCharError {
			return newConfigurationError("reach: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// CheckOutputVars ensures that every metric column an output expression
// references exists in t.
func (o *Outputter) CheckOutputVars(t *MetricTable) error {
	for key, expression := range o.exprs {
		for _, v := range removeDuplicates(expression.Vars()) {
			if !t.HasColumn(v) {
				return newConfigurationError("reach: output variable %s: undefined metric column '%s'", key, v)
			}
		}
	}
	return nil
}

// Write evaluates the output expressions against t and writes one
// polygon per grid cell, with the cell id and the evaluated attribute
// values, to the output shapefile. Geometry is written in geographic
// coordinates with a .prj sidecar.
func (o *Outputter) Write(g *HexGrid, t *MetricTable) error {
	if err := o.CheckOutputVars(t); err != nil {
		return err
	}
	vars := make([]string, 0, len(o.exprs))
	for v := range o.exprs {
		vars = append(vars, v)
	}
	sort.Strings(vars)

	fields := make([]goshp.Field, len(vars)+1)
	fields[0] = goshp.StringField("cell_id", 24)
	for i, v := range vars {
		fields[i+1] = goshp.FloatField(v, 14, 8)
	}

	// remove extension and replace it with .shp
	fileBase := strings.TrimSuffix(o.fileName, filepath.Ext(o.fileName))
	fileName := fileBase + ".shp"
	shape, err := shp.NewEncoderFromFields(fileName, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("reach: error creating output shapefile: %v", err)
	}
	params := make(map[string]interface{}, len(t.Columns))
	for _, id := range t.Cells {
		c, ok := g.Cell(id)
		if !ok {
			return newDataIntegrityError("reach: metric table cell %v is not in the grid", id)
		}
		for _, col := range t.Columns {
			params[col] = t.Get(id, col)
		}
		outFields := make([]interface{}, len(vars)+1)
		outFields[0] = id.String()
		for j, v := range vars {
			result, err := o.exprs[v].Evaluate(params)
			if err != nil {
				return fmt.Errorf("reach: evaluating output variable %s for cell %v: %v", v, id, err)
			}
			outFields[j+1] = result.(float64)
		}
		if err = shape.EncodeFields(c.Polygonal, outFields...); err != nil {
			return fmt.Errorf("reach: error writing output shapefile: %v", err)
		}
	}
	shape.Close()

	// Create .prj file
	f, err := os.Create(fileBase + ".prj")
	if err != nil {
		return fmt.Errorf("reach: error creating output prj file: %v", err)
	}
	fmt.Fprint(f, wgs84WKT)
	return f.Close()
}
