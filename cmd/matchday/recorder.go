package main

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"metaleague.ai/internal/persistence/indexdb"
	persistlog "metaleague.ai/internal/persistence/log"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/internal/sim/schedule"
	"metaleague.ai/internal/transport/observer"
)

var errStorage = errors.New("storage")

// recorder persists every match: manifest and round log under data/matches/<id>, results into the
// shared results log, and both into the index and the live feed when those are enabled.
type recorder struct {
	dataDir string
	idx     *indexdb.SQLiteIndex
	hub     *observer.Hub
	results *persistlog.ResultLogger
	log     *log.Logger

	mu     sync.Mutex
	rounds map[string]*persistlog.RoundLogger
}

func newRecorder(dataDir string, idx *indexdb.SQLiteIndex, hub *observer.Hub, logger *log.Logger) *recorder {
	return &recorder{
		dataDir: dataDir,
		idx:     idx,
		hub:     hub,
		results: persistlog.NewResultLogger(dataDir),
		log:     logger,
		rounds:  map[string]*persistlog.RoundLogger{},
	}
}

func (r *recorder) Begin(m schedule.Manifest) ([]match.Sink, error) {
	dir := persistlog.MatchDir(r.dataDir, m.MatchID)
	if err := schedule.WriteManifest(filepath.Join(dir, schedule.ManifestFile), m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", errStorage, err)
	}
	rl := persistlog.NewRoundLogger(dir)
	r.mu.Lock()
	r.rounds[m.MatchID] = rl
	r.mu.Unlock()

	sinks := []match.Sink{rl}
	if r.idx != nil {
		sinks = append(sinks, r.idx)
	}
	if r.hub != nil {
		sinks = append(sinks, r.hub)
	}
	return sinks, nil
}

func (r *recorder) End(m schedule.Manifest, res *match.MatchResult, err error) error {
	r.mu.Lock()
	rl := r.rounds[m.MatchID]
	delete(r.rounds, m.MatchID)
	r.mu.Unlock()

	var out error
	if rl != nil {
		if cerr := rl.Close(); cerr != nil {
			out = fmt.Errorf("%w: round log: %v", errStorage, cerr)
		}
	}
	if err != nil || res == nil {
		if r.hub != nil && err != nil {
			r.hub.Failure(m.MatchID, err)
		}
		return out
	}
	if werr := r.results.WriteResult(res); werr != nil && out == nil {
		out = fmt.Errorf("%w: result log: %v", errStorage, werr)
	}
	if r.idx != nil {
		r.idx.RecordMatch(res)
	}
	if r.hub != nil {
		r.hub.Result(res)
	}
	return out
}

func (r *recorder) Close() {
	if err := r.results.Close(); err != nil && r.log != nil {
		r.log.Printf("results log close: %v", err)
	}
}
