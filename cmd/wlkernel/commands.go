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
	"github.com/spf13/cobra"
)

// --- Global Flags ---
var (
	configPath string
	logLevel   string
	logJSON    bool
)

// --- Compute Flags ---
var (
	maxDepth    int
	iterations  int
	workers     int
	normalize   bool
	format      string
	byPredicate string
	outputPath  string

	sweepDepths     []int
	sweepIterations []int
	sweepRaw        bool
)

var (
	rootCmd = &cobra.Command{
		Use:   "wlkernel",
		Short: "Weisfeiler-Lehman graph kernels for RDF data",
		Long: `wlkernel compares RDF resources by the Weisfeiler-Lehman subtree kernel
of their neighbourhoods, read from N-Triples files.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
	}

	kernelCmd = &cobra.Command{
		Use:   "kernel <file.nt> <instance-a> <instance-b>",
		Short: "Print the kernel value of two instances",
		Args:  cobra.ExactArgs(3),
		RunE:  runKernel, // Defined in cmd_compute.go
	}

	matrixCmd = &cobra.Command{
		Use:   "matrix <file.nt> [instance...]",
		Short: "Compute the kernel matrix of a list of instances",
		Long: `Computes the symmetric kernel matrix of the given instances. With no
instances on the command line, --instances-by-predicate selects every
subject of a triple whose predicate ends with the given suffix.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runMatrix, // Defined in cmd_compute.go
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep <file.nt> [instance...]",
		Short: "Summarize kernel matrices over a depth x iterations grid",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSweep, // Defined in cmd_compute.go
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the kernel HTTP API for the configured datasets",
		Args:  cobra.NoArgs,
		RunE:  runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("wlkernel " + version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to wlkernel.yaml (default $WLKERNEL_CONFIG, else built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(kernelCmd)
	kernelCmd.Flags().IntVar(&maxDepth, "depth", 2, "Maximum depth of the instance subgraphs")
	kernelCmd.Flags().IntVar(&iterations, "iterations", 1, "Number of relabelling iterations")

	rootCmd.AddCommand(matrixCmd)
	matrixCmd.Flags().IntVar(&maxDepth, "depth", 2, "Maximum depth of the instance subgraphs")
	matrixCmd.Flags().IntVar(&iterations, "iterations", 1, "Number of relabelling iterations")
	matrixCmd.Flags().BoolVar(&normalize, "normalize", false, "Cosine-normalize the matrix")
	matrixCmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or json")
	matrixCmd.Flags().StringVar(&byPredicate, "instances-by-predicate", "",
		"Select instances as subjects of predicates ending with this suffix")
	matrixCmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (0 = GOMAXPROCS)")
	matrixCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to this file instead of stdout")

	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().IntSliceVar(&sweepDepths, "depths", []int{1, 2, 3}, "Depths to evaluate")
	sweepCmd.Flags().IntSliceVar(&sweepIterations, "iterations", []int{0, 1, 2}, "Iteration counts to evaluate")
	sweepCmd.Flags().BoolVar(&sweepRaw, "raw", false, "Summarize unnormalized kernel values")
	sweepCmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or latex")
	sweepCmd.Flags().StringVar(&byPredicate, "instances-by-predicate", "",
		"Select instances as subjects of predicates ending with this suffix")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (0 = GOMAXPROCS)")
	sweepCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write to this file instead of stdout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
