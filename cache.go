package isat

import (
	"container/list"
	"log"
	"math/rand"
	"time"
)

// ISATCache orchestrates retrieve, grow, add, and eviction against a
// BSPTree, plus a most-recently-used list consulted before the tree
// (mirroring hdbscan's Config-driven, single-entry-point style). The MRU
// list and eviction bookkeeping hold only observational references: the
// tree remains the sole owner of every CompositionPoint.
type ISATCache struct {
	cfg  Config
	tree *BSPTree
	mru  *list.List
	rng  *rand.Rand

	nRetrieve       int
	nSecondRetrieve int
	nFailedFirst    int
	lastCheckTime   float64
}

// NewCache builds an ISATCache over a composition space of dimension n,
// validating and defaulting cfg first.
func NewCache(n int, cfg Config) (*ISATCache, error) {
	applyDefaults(&cfg, n)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &ISATCache{
		cfg:  cfg,
		tree: newBSPTree(),
		mru:  list.New(),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Retrieve looks up phiq, trying the MRU list (if enabled), then a primary
// hyperplane descent, then a bounded secondary search. On a hit it
// returns (true, leaf) and updates the leaf's usage bookkeeping. On a
// miss it returns (false, nearest) where nearest is the best nearby leaf
// a caller may pass to Grow after computing the true mapping, or nil if
// the cache is empty.
func (c *ISATCache) Retrieve(phiq []float64, simTime float64) (bool, *CompositionPoint) {
	res := c.retrieve(phiq, simTime)
	return res.Hit, res.Leaf
}

// RetrieveResult is Retrieve with the full outcome a caller batching or
// logging retrieve statistics wants: whether the hit came from a
// secondary search, and whether the hit leaf has crossed a CheckUsed or
// CheckGrown revalidation threshold.
func (c *ISATCache) RetrieveResult(phiq []float64, simTime float64) Result {
	return c.retrieve(phiq, simTime)
}

func (c *ISATCache) retrieve(phiq []float64, simTime float64) Result {
	if c.tree.Size() == 0 {
		return Result{}
	}
	c.nRetrieve++

	if c.cfg.MRURetrieve {
		if leaf := c.mruLookup(phiq); leaf != nil {
			c.markUsed(leaf, simTime)
			return Result{Hit: true, Leaf: leaf, NeedsRevalidation: leaf.needsRevalidation}
		}
	}

	primary := c.tree.PrimarySearch(phiq)
	if primary != nil && primary.InEOA(phiq) {
		c.markUsed(primary, simTime)
		return Result{Hit: true, Leaf: primary, NeedsRevalidation: primary.needsRevalidation}
	}
	c.nFailedFirst++

	if c.cfg.Max2ndSearch > 0 {
		if alt := c.tree.SecondarySearch(phiq, primary, c.cfg.Max2ndSearch); alt != nil {
			c.nSecondRetrieve++
			c.markUsed(alt, simTime)
			return Result{Hit: true, Leaf: alt, SecondaryUsed: true, NeedsRevalidation: alt.needsRevalidation}
		}
	}
	return Result{Leaf: primary}
}

// Grow extends hint's ellipsoid of accuracy to cover phiq. Returns false
// if phiq was already inside (no-op).
func (c *ISATCache) Grow(hint *CompositionPoint, phiq []float64) bool {
	grew := hint.Grow(phiq)
	if !grew {
		log.Printf("isat: grow no-op: phiq already inside the ellipsoid of accuracy")
		return false
	}
	if c.cfg.CheckGrown > 0 && hint.nGrown >= c.cfg.CheckGrown {
		hint.needsRevalidation = true
	}
	return grew
}

// Add inserts a freshly computed mapping sample. Returns ErrCapacityExceeded
// if the tree is already at Config.MaxElements, or ErrDegenerateEOA if the
// gradient could not be turned into a valid ellipsoid; either way the
// cache is left unchanged and the caller still holds its computed result.
func (c *ISATCache) Add(phi, rphi []float64, gradient [][]float64, simTime float64, reduction *ReductionContext) (*CompositionPoint, error) {
	leaf, err := c.tree.Insert(phi, rphi, gradient, c.cfg.ScaleFactor, c.cfg.Tolerance, simTime, c.cfg.MaxElements, reduction)
	if err != nil {
		return nil, err
	}
	c.pushMRU(leaf)
	return leaf, nil
}

// CalcNewC returns the linear extrapolation of leaf's stored mapping
// result to phiq: rphi + A·(phiq-phi). When leaf carries a
// ReductionContext, A and phiq-phi are first projected onto the active
// subspace before multiplying, and the correction is scattered back;
// any inert dimension of the reduction context is passed through
// unchanged.
func (c *ISATCache) CalcNewC(leaf *CompositionPoint, phiq []float64) []float64 {
	n := leaf.n
	out := append([]float64(nil), leaf.rphi...)
	rc := leaf.reduction

	if rc == nil {
		for i := 0; i < n; i++ {
			var sum float64
			row := leaf.gradient[i]
			for j := 0; j < n; j++ {
				sum += row[j] * (phiq[j] - leaf.phi[j])
			}
			out[i] += sum
		}
		return out
	}

	fullDelta := make([]float64, n)
	for i := 0; i < n; i++ {
		fullDelta[i] = phiq[i] - leaf.phi[i]
	}
	activeDelta := rc.projectFull(make([]float64, rc.ActiveCount), fullDelta)

	activeCorrection := make([]float64, rc.ActiveCount)
	for ai, fi := range rc.ActiveToFull {
		var sum float64
		row := leaf.gradient[fi]
		for aj, fj := range rc.ActiveToFull {
			sum += row[fj] * activeDelta[aj]
		}
		activeCorrection[ai] = sum
	}

	correction := make([]float64, n)
	rc.expandActive(correction, activeCorrection)
	for i := 0; i < n; i++ {
		if rc.isInert(i) {
			continue
		}
		out[i] += correction[i]
	}
	return out
}

// CleanAndBalance runs an age/use eviction sweep (if due) and rebalances
// the tree when it has grown too deep or too reliant on secondary search.
// Returns false immediately, without touching the tree, if Config.Clean
// is false.
func (c *ISATCache) CleanAndBalance(simTime float64) bool {
	if !c.cfg.Clean {
		return false
	}
	c.sweepEvictions(simTime)
	if c.shouldBalance() {
		c.tree.Balance(c.rng, c.cfg.MaxNbBalanceTest)
		c.nRetrieve = 0
		c.nSecondRetrieve = 0
		return true
	}
	return false
}

func (c *ISATCache) shouldBalance() bool {
	size := c.tree.Size()
	if size < c.cfg.MinBalanceThreshold {
		return false
	}
	if c.tree.Depth() > maxDepthFor(&c.cfg, size) {
		return true
	}
	if c.nRetrieve > 0 {
		ratio := float64(c.nSecondRetrieve) / float64(c.nRetrieve)
		if ratio > c.cfg.Max2ndRetBalance {
			return true
		}
	}
	return false
}

// sweepEvictions walks every leaf once CheckEntireTreeInterval has
// elapsed, removing any that have outlived ChPMaxLifeTime or gone unused
// longer than ChPMaxUseInterval.
func (c *ISATCache) sweepEvictions(simTime float64) {
	if c.cfg.CheckEntireTreeInterval <= 0 {
		return
	}
	if simTime-c.lastCheckTime < c.cfg.CheckEntireTreeInterval {
		return
	}
	c.lastCheckTime = simTime

	for _, leaf := range c.tree.collectLeaves() {
		expired := c.cfg.ChPMaxLifeTime > 0 && simTime-leaf.timeTag > c.cfg.ChPMaxLifeTime
		stale := c.cfg.ChPMaxUseInterval > 0 && simTime-leaf.lastTimeUsed > c.cfg.ChPMaxUseInterval
		if expired || stale {
			c.tree.DeleteLeaf(leaf)
			c.removeFromMRU(leaf)
			leaf.clearData()
		}
	}
}

// Size returns the number of stored leaves.
func (c *ISATCache) Size() int { return c.tree.Size() }

// Depth returns the tree's current node depth.
func (c *ISATCache) Depth() int { return c.tree.Depth() }

// Clear empties the cache, discarding every stored leaf and resetting all
// retrieve statistics.
func (c *ISATCache) Clear() {
	c.tree.Clear()
	c.mru.Init()
	c.nRetrieve = 0
	c.nSecondRetrieve = 0
	c.nFailedFirst = 0
}

// pushMRU moves leaf to the front of the MRU list if it is already
// present, else pushes it to the front, trimming the tail to MRUSize.
func (c *ISATCache) pushMRU(leaf *CompositionPoint) {
	if c.cfg.MRUSize <= 0 {
		return
	}
	for e := c.mru.Front(); e != nil; e = e.Next() {
		if e.Value.(*CompositionPoint) == leaf {
			c.mru.MoveToFront(e)
			return
		}
	}
	c.mru.PushFront(leaf)
	for c.mru.Len() > c.cfg.MRUSize {
		c.mru.Remove(c.mru.Back())
	}
}

func (c *ISATCache) mruLookup(phiq []float64) *CompositionPoint {
	for e := c.mru.Front(); e != nil; e = e.Next() {
		leaf := e.Value.(*CompositionPoint)
		if leaf.toRemove {
			continue
		}
		if leaf.InEOA(phiq) {
			c.mru.MoveToFront(e)
			return leaf
		}
	}
	return nil
}

func (c *ISATCache) removeFromMRU(leaf *CompositionPoint) {
	for e := c.mru.Front(); e != nil; e = e.Next() {
		if e.Value.(*CompositionPoint) == leaf {
			c.mru.Remove(e)
			return
		}
	}
}

func (c *ISATCache) markUsed(leaf *CompositionPoint, simTime float64) {
	leaf.nUsed++
	leaf.lastTimeUsed = simTime
	if c.cfg.CheckUsed > 0 && float64(leaf.nUsed) >= c.cfg.CheckUsed*float64(c.tree.Size()) {
		leaf.needsRevalidation = true
	}
	if c.cfg.MRURetrieve {
		c.pushMRU(leaf)
	}
}
