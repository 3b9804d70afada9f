// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/config"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/export"
)

const ex = "http://example.org/"

var examplePath = filepath.Join("..", "..", "services", "wlkernel", "testdata", "example.nt")

func TestKernelCommand(t *testing.T) {
	var buf bytes.Buffer
	err := kernelCommand(context.Background(), &buf, examplePath, ex+"A1", ex+"B1", computeOptions{depth: 4, iterations: 1})
	require.NoError(t, err)
	assert.Equal(t, "9.5\n", buf.String())
}

func TestKernelCommand_UnknownInstanceStrict(t *testing.T) {
	var buf bytes.Buffer
	err := kernelCommand(context.Background(), &buf, examplePath, ex+"A1", ex+"Nope", computeOptions{depth: 2, strict: true})
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestMatrixCommand_CSV(t *testing.T) {
	var buf bytes.Buffer
	err := matrixCommand(context.Background(), &buf, examplePath, []string{ex + "A1", ex + "B1"},
		computeOptions{depth: 4, format: "csv"})
	require.NoError(t, err)

	want := "instance," + ex + "A1," + ex + "B1\n" +
		ex + "A1,19,11\n" +
		ex + "B1,11,13\n"
	assert.Equal(t, want, buf.String())
}

func TestMatrixCommand_JSONByPredicate(t *testing.T) {
	var buf bytes.Buffer
	err := matrixCommand(context.Background(), &buf, examplePath, nil,
		computeOptions{depth: 4, format: "json", byPredicate: "P2", workers: 2})
	require.NoError(t, err)

	var doc export.MatrixDocument
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, []string{ex + "A1", ex + "A2", ex + "B1"}, doc.Instances)
	assert.Equal(t, [][]float64{{19, 11, 11}, {11, 8, 7}, {11, 7, 13}}, doc.Matrix)
}

func TestMatrixCommand_Errors(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		instances []string
		opts      computeOptions
		wantErr   error
	}{
		{"no instances", examplePath, nil, computeOptions{format: "csv"}, errNoInstances},
		{"predicate matches nothing", examplePath, nil, computeOptions{format: "csv", byPredicate: "nothing"}, errNoInstances},
		{"unknown format", examplePath, []string{ex + "A1"}, computeOptions{format: "xml"}, errUnknownFormat},
		{"missing file", "missing.nt", []string{ex + "A1"}, computeOptions{format: "csv"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := matrixCommand(context.Background(), &bytes.Buffer{}, tt.path, tt.instances, tt.opts)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSweepCommand(t *testing.T) {
	var buf bytes.Buffer
	err := sweepCommand(context.Background(), &buf, examplePath, nil, computeOptions{
		format:      "csv",
		byPredicate: "P2",
		raw:         true,
		depths:      []int{4},
		sweepIters:  []int{1, 0},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "depth,iterations,mean,stddev,min,max", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "4,0,"), lines[1])

	fields := strings.Split(lines[2], ",")
	require.Len(t, fields, 6)
	assert.Equal(t, []string{"4", "1"}, fields[:2])
	for i, want := range []float64{9.5, 3, 6.5, 12.5} {
		got, err := strconv.ParseFloat(fields[i+2], 64)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-9)
	}
}

func TestSweepCommand_LaTeX(t *testing.T) {
	var buf bytes.Buffer
	err := sweepCommand(context.Background(), &buf, examplePath, []string{ex + "A1", ex + "B1"}, computeOptions{
		format:     "latex",
		depths:     []int{1, 2},
		sweepIters: []int{0},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `\toprule`)
	assert.Contains(t, buf.String(), `\bottomrule`)
}

func TestSweepCommand_UnknownFormat(t *testing.T) {
	err := sweepCommand(context.Background(), &bytes.Buffer{}, examplePath, nil, computeOptions{format: "md"})
	assert.ErrorIs(t, err, errUnknownFormat)
}

func TestResolveOptions_ConfigDefaults(t *testing.T) {
	saved := appConfig
	t.Cleanup(func() { appConfig = saved })
	appConfig = config.Default()
	appConfig.Kernel.MaxDepth = 3
	appConfig.Kernel.Iterations = 2
	appConfig.Kernel.Workers = 4

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&maxDepth, "depth", 2, "")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "")
	cmd.Flags().IntVar(&workers, "workers", 0, "")
	require.NoError(t, cmd.Flags().Set("iterations", "5"))

	opts := resolveOptions(cmd)
	assert.Equal(t, 3, opts.depth)
	assert.Equal(t, 5, opts.iterations)
	assert.Equal(t, 4, opts.workers)
}

func TestSelectInstances_ExplicitWins(t *testing.T) {
	got, err := selectInstances(nil, []string{"a", "b"}, "P2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("WLKERNEL_CONFIG", "")
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "wlkernel dev\n", out.String())
}
