// Package detector implements Detector, the orchestrator that drives
// slices through EicExtractor, PeakFilter, GroupBuilder and GroupFilter
// to populate a run's group container. Each slice fans out across
// samples with a goroutine per sample and a single merge mutex.
// Per-slice EIC extraction results are memoized in an in-memory badger
// instance keyed by (sample, slice) bounds, cleared at the start of
// every run.
package detector

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/classifier"
	eicpkg "github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/eic"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/groupbuilder"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/groupfilter"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakfilter"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/msdata"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/progress"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/slicegen"
)

// Detector orchestrates one detection run.
type Detector struct {
	Samples    []msdata.EicSource
	Classifier classifier.Classifier
	Progress   progress.Sink
	GroupFilter *groupfilter.Filter

	cache  *badger.DB
	nextID int
	mu     sync.Mutex
}

// New builds a Detector over samples, with an in-memory EIC cache and
// a no-op classifier/progress sink unless overridden by the caller.
func New(samples []msdata.EicSource) (*Detector, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "detector: open in-memory cache")
	}
	gf, err := groupfilter.New()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Detector{
		Samples:     samples,
		Classifier:  classifier.None,
		Progress:    progress.None,
		GroupFilter: gf,
		cache:       db,
	}, nil
}

// Close releases the Detector's cache resources.
func (d *Detector) Close() error {
	d.GroupFilter.Close()
	return d.cache.Close()
}

// Run drives one detection pass against compounds (pass nil for
// untargeted detection, relying on gen.Untargeted) and returns the
// run's group container, intensity-descending.
func (d *Detector) Run(ctx context.Context, gen *slicegen.Generator, compounds []*mzmodel.Compound, p *params.Parameters) ([]*peakgroup.Group, error) {
	d.clearCache()

	slices, err := gen.Generate(compounds, p)
	if err != nil {
		return nil, errors.Wrap(err, "detector: generate slices")
	}
	sort.SliceStable(slices, func(i, j int) bool { return slices[i].Intensity > slices[j].Intensity })

	var groups []*peakgroup.Group
	total := len(slices)

	for i, slice := range slices {
		if p.Stopped() {
			d.Progress.Report("cancelled", i, total)
			break
		}
		select {
		case <-ctx.Done():
			d.Progress.Report("cancelled", i, total)
			return groups, ctx.Err()
		default:
		}

		eics, err := d.extractEICs(slice, p)
		if err != nil {
			return groups, errors.Wrapf(err, "detector: slice %d", i)
		}

		if d.Classifier != nil && d.Classifier.HasModel() {
			d.Classifier.ScoreEICs(eics)
		}

		quant := peakgroup.Quantitation(p.PeakQuantitation)
		maxIntensity := peakgroup.EicMaxIntensity(eics, quant)

		if slice.IsParentForm() && maxIntensity < p.MinGroupIntensity {
			continue
		}

		relaxed := !slice.IsParentForm()
		snapshot := p.Snapshot()
		peakfilter.Apply(eics, snapshot, relaxed)

		built := groupbuilder.Build(eics, slice, snapshot, d.allocID)
		if slice.IsParentForm() {
			built = d.GroupFilter.Apply(built, snapshot)
		}

		groups = prepend(groups, built)

		if p.LimitGroupCount > 0 && len(groups) > p.LimitGroupCount {
			log.Printf("detector: group count limit (%d) exceeded, stopping early", p.LimitGroupCount)
			break
		}

		d.Progress.Report(fmt.Sprintf("processed slice %d/%d", i+1, total), i+1, total)
	}

	return groups, nil
}

// AverageScanTime returns the mean scan interval across all samples, in
// the same time unit as sample retention times: each sample's RT span
// divided by its number of MS1 scans minus one, averaged over samples
// with at least two MS1 scans. The parent-correlation
// filter uses this to turn a scan-count window into an RT tolerance.
func (d *Detector) AverageScanTime() float64 {
	return d.averageScanTime()
}

func (d *Detector) allocID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

// AllocID returns an ID allocator function bound to this Detector's
// counter, for use by downstream stages (Identifier, MetaGrouper) that
// need to mint IDs for newly created groups within the same run.
func (d *Detector) AllocID() func() int {
	return d.allocID
}

func prepend(dst []*peakgroup.Group, src []*peakgroup.Group) []*peakgroup.Group {
	if len(src) == 0 {
		return dst
	}
	out := make([]*peakgroup.Group, 0, len(dst)+len(src))
	out = append(out, src...)
	out = append(out, dst...)
	return out
}

// extractEICs runs extraction across all samples in parallel: each
// worker goroutine extracts its own sample's EIC independently, then a
// single mutex-guarded merge step appends it to the shared result
// slice.
func (d *Detector) extractEICs(slice *mzmodel.Slice, p *params.Parameters) ([]*eicpkg.EIC, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results []*eicpkg.EIC
		firstErr error
	)

	for _, sample := range d.Samples {
		if !sample.IsSelected() {
			continue
		}
		sample := sample
		wg.Add(1)
		go func() {
			defer wg.Done()

			e, err := d.cachedExtract(sample, slice, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if e != nil {
				results = append(results, e)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (d *Detector) cachedExtract(sample msdata.EicSource, slice *mzmodel.Slice, p *params.Parameters) (*eicpkg.EIC, error) {
	key := cacheKey(sample.ID(), slice)

	var cached eicpkg.EIC
	err := d.cache.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cached)
		})
	})
	if err == nil {
		cached.Slice = slice
		return &cached, nil
	}
	if !stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrap(err, "detector: read cache")
	}

	e, err := eicpkg.Extract(sample, slice, p)
	if err != nil || e == nil {
		return e, err
	}

	if data, err := json.Marshal(e); err == nil {
		_ = d.cache.Update(func(txn *badger.Txn) error {
			return txn.Set(key, data)
		})
	}
	return e, nil
}

func cacheKey(sampleID string, slice *mzmodel.Slice) []byte {
	return []byte(fmt.Sprintf("%s|%.6f|%.6f|%.6f|%.6f|%s",
		sampleID, slice.MzMin, slice.MzMax, slice.RtMin, slice.RtMax, slice.SrmID))
}

// clearCache drops all cached EICs at the start of a run, since a
// Parameters change (smoothing, baseline mode) invalidates prior runs'
// cached results.
func (d *Detector) clearCache() {
	_ = d.cache.DropAll()
	d.nextID = 0
}

func (d *Detector) averageScanTime() float64 {
	if len(d.Samples) == 0 {
		return 0
	}
	var total float64
	var count int
	for _, s := range d.Samples {
		span := s.MaxRt() - s.MinRt()
		if span <= 0 {
			continue
		}
		scans, err := s.GetEICByRange(-math.MaxFloat64, math.MaxFloat64, s.MinRt(), s.MaxRt(), 1, msdata.MaxIntensity, "")
		if err != nil || len(scans) < 2 {
			continue
		}
		total += span / float64(len(scans)-1)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
