// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// gcLoop periodically rewrites the value log.
type gcLoop struct {
	db     *badger.DB
	ratio  float64
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

func startGC(db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) *gcLoop {
	g := &gcLoop{
		db:     db,
		ratio:  ratio,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go g.run(interval)
	return g
}

func (g *gcLoop) run(interval time.Duration) {
	defer close(g.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopCh:
			return
		case <-ticker.C:
			g.collect()
		}
	}
}

// collect rewrites value-log files until badger reports nothing to do.
func (g *gcLoop) collect() {
	rewrites := 0
	for {
		err := g.db.RunValueLogGC(g.ratio)
		if err == nil {
			rewrites++
			continue
		}
		if !errors.Is(err, badger.ErrNoRewrite) && g.logger != nil {
			g.logger.Warn("value log GC failed", slog.String("error", err.Error()))
		}
		break
	}
	if rewrites > 0 && g.logger != nil {
		g.logger.Debug("value log GC done", slog.Int("rewrites", rewrites))
	}
}

func (g *gcLoop) stop() {
	close(g.stopCh)
	<-g.doneCh
}
