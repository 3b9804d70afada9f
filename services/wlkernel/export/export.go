// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export writes kernel matrices and sweep results as CSV, JSON and
// LaTeX.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/sweep"
)

// ErrDimension is returned when the instance list does not match the matrix.
var ErrDimension = errors.New("instance count does not match matrix dimension")

// MatrixDocument is the JSON form of a kernel matrix.
type MatrixDocument struct {
	Instances []string    `json:"instances"`
	Matrix    [][]float64 `json:"matrix"`
}

// Rows copies m into a row-major slice of slices.
func Rows(m mat.Symmetric) [][]float64 {
	n := m.SymmetricDim()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}

// WriteMatrixCSV writes a header of instance ids, then one row per
// instance prefixed by its id.
func WriteMatrixCSV(w io.Writer, instances []string, m mat.Symmetric) error {
	if len(instances) != m.SymmetricDim() {
		return fmt.Errorf("%w: %d instances, dimension %d", ErrDimension, len(instances), m.SymmetricDim())
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"instance"}, instances...)); err != nil {
		return err
	}
	for i, row := range Rows(m) {
		record := make([]string, 0, len(row)+1)
		record = append(record, instances[i])
		for _, v := range row {
			record = append(record, formatFloat(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrixJSON writes {"instances": [...], "matrix": [[...]]}.
func WriteMatrixJSON(w io.Writer, instances []string, m mat.Symmetric) error {
	if len(instances) != m.SymmetricDim() {
		return fmt.Errorf("%w: %d instances, dimension %d", ErrDimension, len(instances), m.SymmetricDim())
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(MatrixDocument{Instances: instances, Matrix: Rows(m)})
}

var sweepHeader = []string{"depth", "iterations", "mean", "stddev", "min", "max"}

// WriteSweepCSV writes depth,iterations,mean,stddev,min,max rows.
func WriteSweepCSV(w io.Writer, rows []sweep.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sweepHeader); err != nil {
		return err
	}
	for _, r := range rows {
		err := cw.Write([]string{
			strconv.Itoa(r.Depth),
			strconv.Itoa(r.Iterations),
			formatFloat(r.Mean),
			formatFloat(r.StdDev),
			formatFloat(r.Min),
			formatFloat(r.Max),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSweepLaTeX writes rows as a booktabs tabular indexed by depth and
// iterations. The depth cell is printed only on the first row of each
// depth group.
func WriteSweepLaTeX(w io.Writer, rows []sweep.Row) error {
	var sb strings.Builder
	sb.WriteString("\\begin{tabular}{llrrrr}\n\\toprule\n")
	sb.WriteString(" &  & mean & stddev & min & max \\\\\n")
	sb.WriteString("depth & iterations &  &  &  &  \\\\\n\\midrule\n")

	for i, r := range rows {
		depth := ""
		if i == 0 || rows[i-1].Depth != r.Depth {
			depth = strconv.Itoa(r.Depth)
		}
		fmt.Fprintf(&sb, "%s & %d & %.6f & %.6f & %.6f & %.6f \\\\\n",
			depth, r.Iterations, r.Mean, r.StdDev, r.Min, r.Max)
	}
	sb.WriteString("\\bottomrule\n\\end{tabular}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
