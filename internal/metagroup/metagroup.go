// Package metagroup implements MetaGrouper: resolving parent<->child
// assignments across isotope and adduct families and nesting children
// under their parents.
//
// The conflict-resolution displacement logic is implemented with an
// explicit LIFO work stack rather than recursion: popping the stack
// processes a displaced subject immediately, the same depth-first order
// a recursive call would give it, without growing the call stack with
// compound/sub-type fan-out.
package metagroup

import (
	"math"
	"sort"

	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/groupfilter"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/mzmodel"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/params"
	"github.com/MetabolomicsAustralia-Bioinformatics/ElMaven/internal/peakgroup"
)

// Correlator is the subset of groupfilter.Filter that MetaGrouper needs
// to reject a matched (parent, child) pair failing the parent-correlation
// test: a child displaced by correlation becomes an orphan, same as one
// that lost the RT-distance assignment. Accepting an interface here,
// rather than importing groupfilter.Filter directly, avoids a needless
// dependency from MetaGrouper on GroupFilter's cache internals.
type Correlator interface {
	CorrelatesWithParent(parent, child *peakgroup.Group, sampleOrder []string,
		scanWindow int, avgScanTime, minCorrelation float64) groupfilter.CorrelationResult
}

// Run performs the full meta-grouping pass over groups and returns the
// resulting top-level container: surviving parents (with children
// nested inside) plus any ghost parents created for orphans. Non-parent
// groups that were matched to a parent are removed from the top level
// (they live on as that parent's child). corr/sampleOrder/avgScanTime
// drive the parent-correlation filter; pass a nil corr to skip it
// entirely (e.g. in tests exercising matching alone).
func Run(groups []*peakgroup.Group, p *params.Parameters, corr Correlator, sampleOrder []string, avgScanTime float64) []*peakgroup.Group {
	// Phase A: N-best pruning for parent-form groups, bucketed by compound.
	parentsByCompound := bucketParents(groups)
	groups = keepNBestRanked(groups, parentsByCompound, p.EicMaxGroups)

	// Phase B: assign stable group IDs to all surviving groups.
	for i, g := range groups {
		g.GroupID = i + 1
	}

	// Re-bucket parents after pruning (GroupID/indices changed).
	parentsByCompound = bucketParents(groups)

	// Phase C: bucket remaining (non-parent) groups by compound into
	// isotope and adduct maps.
	isotopesByCompound := map[*mzmodel.Compound][]int{}
	adductsByCompound := map[*mzmodel.Compound][]int{}
	for i, g := range groups {
		if g.Compound == nil || isParentGroup(g) {
			continue
		}
		if isIsotopeChild(g) {
			isotopesByCompound[g.Compound] = append(isotopesByCompound[g.Compound], i)
		} else if isAdductChild(g) {
			adductsByCompound[g.Compound] = append(adductsByCompound[g.Compound], i)
		}
	}

	if len(isotopesByCompound) == 0 && len(adductsByCompound) == 0 {
		return groups
	}

	// metaGroups[compound][parentIndex] = []childIndex, plus orphan
	// ghosts appended directly to `groups` as we go (Phase E).
	metaGroups := map[*mzmodel.Compound]map[int][]int{}

	isotopeCheck := correlationCheck(corr, p.FilterIsotopesAgainstParent, sampleOrder,
		p.MaxIsotopeScanDiff, avgScanTime, p.MinIsotopicCorrelation)
	adductCheck := correlationCheck(corr, p.FilterAdductsAgainstParent, sampleOrder,
		p.AdductSearchWindow, avgScanTime, p.AdductPercentCorrelation)

	for _, compound := range sortedCompounds(isotopesByCompound) {
		children := isotopesByCompound[compound]
		nonOrphans, orphans := makeMeta(&groups, compound, children, parentsByCompound, p, isotopeName, isotopeCheck)
		merge(metaGroups, compound, nonOrphans)
		if len(orphans) > 0 {
			ghostIdx := spawnGhost(&groups, compound, p)
			metaGroups[compound][ghostIdx] = append(metaGroups[compound][ghostIdx], orphans...)
		}
	}

	for _, compound := range sortedCompounds(adductsByCompound) {
		children := adductsByCompound[compound]
		nonOrphans, orphans := makeMeta(&groups, compound, children, parentsByCompound, p, adductName, adductCheck)
		merge(metaGroups, compound, nonOrphans)
		if len(orphans) > 0 {
			ghostIdx := spawnGhost(&groups, compound, p)
			metaGroups[compound][ghostIdx] = append(metaGroups[compound][ghostIdx], orphans...)
		}
	}

	// Phase F: nest children into parents, then compact the container.
	toErase := map[int]bool{}
	for _, compoundMeta := range metaGroups {
		for parentIdx, childIdxs := range compoundMeta {
			parent := groups[parentIdx]
			for _, childIdx := range childIdxs {
				child := groups[childIdx]
				if isIsotopeChild(child) {
					parent.ChildIsotopes = append(parent.ChildIsotopes, child)
				} else if isAdductChild(child) {
					parent.ChildAdducts = append(parent.ChildAdducts, child)
				}
				toErase[childIdx] = true
			}
		}
	}

	return compact(groups, toErase)
}

func isParentGroup(g *peakgroup.Group) bool {
	return g.Slice != nil && g.Slice.IsParentForm()
}

func isIsotopeChild(g *peakgroup.Group) bool {
	return !g.Isotope.IsParent() && !g.Isotope.IsNone()
}

func isAdductChild(g *peakgroup.Group) bool {
	return g.Adduct != nil && !g.Adduct.IsParent
}

func bucketParents(groups []*peakgroup.Group) map[*mzmodel.Compound][]int {
	m := map[*mzmodel.Compound][]int{}
	for i, g := range groups {
		if g.Compound == nil || !isParentGroup(g) {
			continue
		}
		m[g.Compound] = append(m[g.Compound], i)
	}
	return m
}

// keepNBestRanked removes, for every compound bucket larger than nBest,
// all but the top nBest parents by descending GroupRank. Implemented by
// marking indices for removal and compacting once rather than erasing
// one at a time.
func keepNBestRanked(groups []*peakgroup.Group, byCompound map[*mzmodel.Compound][]int, nBest int) []*peakgroup.Group {
	if nBest <= 0 {
		return groups
	}
	toErase := map[int]bool{}
	for _, compound := range sortedCompounds(byCompound) {
		idxs := append([]int(nil), byCompound[compound]...)
		if len(idxs) <= nBest {
			continue
		}
		sort.SliceStable(idxs, func(a, b int) bool {
			return groups[idxs[a]].GroupRank > groups[idxs[b]].GroupRank
		})
		for _, idx := range idxs[nBest:] {
			toErase[idx] = true
		}
	}
	if len(toErase) == 0 {
		return groups
	}
	return compact(groups, toErase)
}

// sortedCompounds returns m's keys in a stable order (by compound name)
// so iteration order does not depend on Go's randomized map iteration -
// a run over the same input must produce the same groups every time.
func sortedCompounds(m map[*mzmodel.Compound][]int) []*mzmodel.Compound {
	out := make([]*mzmodel.Compound, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func merge(dst map[*mzmodel.Compound]map[int][]int, compound *mzmodel.Compound, src map[int][]int) {
	if dst[compound] == nil {
		dst[compound] = map[int][]int{}
	}
	for parentIdx, childIdxs := range src {
		dst[compound][parentIdx] = append(dst[compound][parentIdx], childIdxs...)
	}
}

func isotopeName(g *peakgroup.Group) string { return g.Isotope.Name }
func adductName(g *peakgroup.Group) string {
	if g.Adduct == nil {
		return ""
	}
	return g.Adduct.Name
}

// makeMeta clubs childIndexes (all belonging to compound) with their
// most likely parent group, grouped by sub-type name via nameOf
// (isotope name or adduct name). Children that cannot be matched
// because there are more children than parents, or that fail the
// parent-correlation test (check), become orphans.
func makeMeta(groups *[]*peakgroup.Group, compound *mzmodel.Compound, childIndexes []int,
	parentsByCompound map[*mzmodel.Compound][]int, p *params.Parameters,
	nameOf func(*peakgroup.Group) string, check func(parent, child *peakgroup.Group) bool) (nonOrphans map[int][]int, orphans []int) {

	nonOrphans = map[int][]int{}
	parentIndexes := parentsByCompound[compound]
	if len(parentIndexes) == 0 {
		return nonOrphans, append([]int(nil), childIndexes...)
	}

	g := *groups
	nameGrouped := map[string][]int{}
	for _, idx := range childIndexes {
		name := nameOf(g[idx])
		nameGrouped[name] = append(nameGrouped[name], idx)
	}

	var subtypeNames []string
	for name := range nameGrouped {
		subtypeNames = append(subtypeNames, name)
	}
	sort.Strings(subtypeNames)

	rtDist := func(a, b int) float64 { return math.Abs(g[a].MeanRt - g[b].MeanRt) }

	for _, name := range subtypeNames {
		childIdxs := nameGrouped[name]
		assignment, unmatched := matchParentsToChildren(parentIndexes, childIdxs, rtDist)
		for child, parent := range assignment {
			if check != nil && !check(g[parent], g[child]) {
				orphans = append(orphans, child)
				continue
			}
			nonOrphans[parent] = append(nonOrphans[parent], child)
		}
		orphans = append(orphans, unmatched...)
	}
	return nonOrphans, orphans
}

// correlationCheck builds the per-family check function makeMeta applies
// to every (parent, child) match, or nil when either the feature flag is
// off or no Correlator was supplied - the filter is optional, gated by
// FilterIsotopesAgainstParent/FilterAdductsAgainstParent.
func correlationCheck(corr Correlator, enabled bool, sampleOrder []string,
	scanWindow int, avgScanTime, minCorrelation float64) func(parent, child *peakgroup.Group) bool {
	if corr == nil || !enabled {
		return nil
	}
	return func(parent, child *peakgroup.Group) bool {
		return corr.CorrelatesWithParent(parent, child, sampleOrder, scanWindow, avgScanTime, minCorrelation).Pass
	}
}

// matchParentsToChildren runs the stable-matching assignment: the
// smaller side are subjects, the larger are objects, so every subject
// is guaranteed a distinct object. Returns child->parent assignment and
// any unmatched children (only possible when children outnumber
// parents).
func matchParentsToChildren(parentIndexes, childIndexes []int, rtDist func(a, b int) float64) (map[int]int, []int) {
	if len(childIndexes) <= len(parentIndexes) {
		subjects, objects := childIndexes, parentIndexes
		subjectsWithObjects, _ := assign(subjects, objects, rtDist)
		return subjectsWithObjects, nil
	}

	subjects, objects := parentIndexes, childIndexes
	_, objectsWithSubjects := assign(subjects, objects, rtDist)

	childToParent := map[int]int{}
	for child, parent := range objectsWithSubjects {
		childToParent[child] = parent
	}
	var orphans []int
	for _, child := range childIndexes {
		if _, ok := childToParent[child]; !ok {
			orphans = append(orphans, child)
		}
	}
	return childToParent, orphans
}

// assign implements the iterative priority-list assignment with
// displacement, using an explicit LIFO stack rather than recursion.
// Returns both directions of the mapping.
func assign(subjects, objects []int, rtDist func(a, b int) float64) (subjectToObject, objectToSubject map[int]int) {
	subjectToObject = map[int]int{}
	objectToSubject = map[int]int{}

	priority := make(map[int][]int, len(subjects))
	for _, s := range subjects {
		list := append([]int(nil), objects...)
		sort.SliceStable(list, func(i, j int) bool {
			return rtDist(list[i], s) < rtDist(list[j], s)
		})
		priority[s] = list
	}

	// Seed the stack in reverse so popping yields subjects in their
	// original order; displaced subjects are pushed on top and so are
	// processed immediately, the same depth-first timing a recursive
	// implementation would give them.
	stack := make([]int, len(subjects))
	for i, s := range subjects {
		stack[len(subjects)-1-i] = s
	}

	for len(stack) > 0 {
		n := len(stack) - 1
		subject := stack[n]
		stack = stack[:n]

		for _, object := range priority[subject] {
			competing, taken := objectToSubject[object]
			if !taken {
				subjectToObject[subject] = object
				objectToSubject[object] = subject
				break
			}
			if rtDist(subject, object) < rtDist(competing, object) {
				subjectToObject[subject] = object
				objectToSubject[object] = subject
				delete(subjectToObject, competing)
				stack = append(stack, competing)
				break
			}
			// tie or worse: keep earlier assignment, try next preference
		}
	}

	return subjectToObject, objectToSubject
}

// spawnGhost appends a synthetic Ghost parent for compound, with a
// slice derived from the compound's m/z window and no RT bounds, and
// returns its index in *groups.
func spawnGhost(groups *[]*peakgroup.Group, compound *mzmodel.Compound, p *params.Parameters) int {
	slice := &mzmodel.Slice{Compound: compound}
	slice.CalculateMzMinMax(p.CompoundMassCutoffWindow, p.Charge)
	slice.CalculateRtMinMax(false, 0)

	ghost := &peakgroup.Group{
		Slice:           slice,
		Compound:        compound,
		Isotope:         mzmodel.ParentIsotope,
		IntegrationType: peakgroup.Ghost,
		MeanMz:          (slice.MzMin + slice.MzMax) / 2,
	}
	*groups = append(*groups, ghost)
	ghost.GroupID = len(*groups)
	return len(*groups) - 1
}

// compact removes the indices marked in toErase from groups, swapping
// each erased slot with the current last element before shrinking; it
// does not preserve group order.
func compact(groups []*peakgroup.Group, toErase map[int]bool) []*peakgroup.Group {
	indices := make([]int, 0, len(toErase))
	for idx := range toErase {
		indices = append(indices, idx)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))
	for _, idx := range indices {
		last := len(groups) - 1
		groups[idx] = groups[last]
		groups = groups[:last]
	}
	return groups
}
