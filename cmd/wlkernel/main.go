// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command wlkernel computes Weisfeiler-Lehman graph kernels between RDF
// instances and serves them over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lorenzopalloni/wl-graph-kernels/pkg/logging"
	"github.com/lorenzopalloni/wl-graph-kernels/services/wlkernel/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	appConfig config.Config
	appLogger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the default logger. Flags win
// over the config file.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	appConfig = cfg

	levelName := cfg.Logging.Level
	if cmd.Flags().Changed("log-level") {
		levelName = logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	format := logging.FormatAuto
	if logJSON || cfg.Logging.JSON {
		format = logging.FormatJSON
	}
	appLogger = logging.New(logging.Config{
		Level:   level,
		Service: "wlkernel",
		Format:  format,
		Output:  cmd.ErrOrStderr(),
		LogDir:  cfg.Logging.Dir,
	})
	slog.SetDefault(appLogger.Slog())
	return nil
}

func teardown(*cobra.Command, []string) {
	if appLogger != nil {
		if err := appLogger.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close logger: %v\n", err)
		}
	}
}
