// Package library implements the driver (C7): walking a directory of AT2
// files into a shared motion library, pairing components, and delegating
// to the search engine.
package library

import (
	"context"
	"io/fs"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/alitto/pond"

	"github.com/arkottke/sigmaspectra/motion"
	"github.com/arkottke/sigmaspectra/search"
	"github.com/arkottke/sigmaspectra/suite"
	"github.com/arkottke/sigmaspectra/target"
)

// Options configures a directory load (§4.7).
type Options struct {
	Paired  bool
	Config  motion.SpectrumConfig
	Workers int // pond pool size for concurrent record construction; <=0 uses runtime default of 4
}

// Library owns the motions built from a directory tree and the candidate
// list the search engine will run against. It is the load-then-process
// pipeline of §4.7.
type Library struct {
	records []*motion.Record
	motions []motion.Motion
}

// Load walks root for .AT2/.at2 files, builds a Record for each (sharing
// cfg across the whole tree per §9 DESIGN NOTES), and — if paired — greedily
// pairs same-event/same-station records of differing component, dropping
// unmatched records with a logged warning (§4.7).
func Load(root string, opts Options) (*Library, error) {
	paths, err := findAT2Files(root)
	if err != nil {
		return nil, err
	}

	records, err := loadRecordsConcurrently(paths, opts.Config, opts.Workers)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Event() != records[j].Event() {
			return records[i].Event() < records[j].Event()
		}
		if records[i].Station() != records[j].Station() {
			return records[i].Station() < records[j].Station()
		}
		return records[i].Component() < records[j].Component()
	})

	lib := &Library{records: records}

	if !opts.Paired {
		lib.motions = make([]motion.Motion, len(records))
		for i, r := range records {
			lib.motions[i] = r
		}
		return lib, nil
	}

	lib.motions = pairRecords(records)
	return lib, nil
}

// findAT2Files walks root for files with a case-insensitive .AT2
// extension (§4.7, §6).
func findAT2Files(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".at2") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// loadRecordsConcurrently builds records across a bounded pond worker pool,
// logging and skipping per-file parse failures rather than failing the
// whole load (§7: IoError is recovered locally).
func loadRecordsConcurrently(paths []string, cfg motion.SpectrumConfig, workers int) ([]*motion.Record, error) {
	if workers <= 0 {
		workers = 4
	}

	pool := pond.New(workers, 0, pond.MinWorkers(workers))
	defer pool.StopAndWait()

	var mu sync.Mutex
	records := make([]*motion.Record, 0, len(paths))

	for _, p := range paths {
		p := p
		pool.Submit(func() {
			r, err := motion.LoadRecord(p, cfg)
			if err != nil {
				log.Printf("skipping %s: %v", p, err)
				return
			}
			mu.Lock()
			records = append(records, r)
			mu.Unlock()
		})
	}

	pool.StopAndWait()
	return records, nil
}

// pairRecords greedily matches each unmatched record with the first
// remaining record forming a pair, in the deterministic sort order
// already applied to records. Unmatched records are dropped with a
// logged warning (§4.7).
func pairRecords(records []*motion.Record) []motion.Motion {
	used := make([]bool, len(records))
	motions := make([]motion.Motion, 0, len(records)/2+1)

	for i := range records {
		if used[i] {
			continue
		}
		matched := false
		for j := i + 1; j < len(records); j++ {
			if used[j] {
				continue
			}
			pair, err := motion.NewPair(records[i], records[j])
			if err != nil {
				continue
			}
			used[i], used[j] = true, true
			motions = append(motions, pair)
			matched = true
			break
		}
		if !matched && !used[i] {
			log.Printf("dropping unpaired record %s/%s%s", records[i].Event(), records[i].Station(), records[i].Component())
		}
	}

	return motions
}

// Motions returns the candidate motion list built by Load, in
// deterministic (event, station, component) order.
func (l *Library) Motions() []motion.Motion { return l.motions }

// SetFlag sets a motion's flag by exact Name match, used by drivers to
// mark Required/Requested/Disabled motions before search.
func (l *Library) SetFlag(name string, flag motion.Flag) bool {
	for _, m := range l.motions {
		if m.Name() == name {
			m.SetFlag(flag)
			return true
		}
	}
	return false
}

// ResetScales restores every underlying record's prev_scale to 1, so a
// fresh search can be re-run over the same library (§8 property 10).
func (l *Library) ResetScales() {
	for _, r := range l.records {
		r.ResetScale()
	}
}

// Search runs the combinatorial search engine (C6) over the library's
// candidate list against tgt and returns the ranked suites with finalized
// scalars, but does not apply them: ranked suites may share member
// motions (§9 DESIGN NOTES: suites borrow, they do not own), so scaling
// is left to the caller, one suite at a time, via Suite.ScaleMotions /
// Suite.UnscaleMotions around each export.
//
// workers selects the execution path: workers<=1 runs the sequential
// engine (the default all determinism properties of §8 are specified
// against), workers>1 partitions the seed space across a pond worker
// pool via Engine.RunParallel (§4.6 DOMAIN STACK addition).
func (l *Library) Search(ctx context.Context, params search.Params, tgt *target.Spectrum, workers int, progress search.ProgressFunc) ([]*suite.Suite, error) {
	engine, err := search.New(l.motions, params, tgt)
	if err != nil {
		return nil, err
	}

	if workers > 1 {
		return engine.RunParallel(ctx, workers, progress)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			engine.Cancel()
		case <-done:
		}
	}()

	return engine.Run(progress)
}
