package isat

import (
	"fmt"
	"math"
)

// Config controls ISAT cache behavior.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// Tolerance is the error tolerance epsilon used to size every ellipsoid
	// of accuracy. Smaller values give tighter EOAs (more cache misses,
	// higher accuracy). Must be > 0. Default: 1e-4.
	Tolerance float64

	// ScaleFactor holds one positive scale per composition dimension,
	// normalizing heterogeneous units (species mass fractions, temperature,
	// pressure) before the EOA shape matrix is built. Must have length
	// equal to the cache's dimension and every entry > 0. Default: all 1s.
	ScaleFactor []float64

	// MaxElements bounds the number of leaves the tree may hold. Add
	// returns ErrCapacityExceeded once this is reached. NewCache replaces
	// 0 with the default, so a cache is always bounded. Default: 100000.
	MaxElements int

	// Max2ndSearch bounds how many leaves a secondary search may test
	// after a primary search miss. 0 disables secondary search.
	// Default: 10.
	Max2ndSearch int

	// MinBalanceThreshold is the minimum tree size before CleanAndBalance
	// will consider rebuilding the tree. Default: 1000.
	MinBalanceThreshold int

	// MaxNbBalanceTest caps the number of leaves sampled when selecting a
	// split direction for Balance. 0 means sample every leaf in the
	// subtree being balanced. Default: 0.
	MaxNbBalanceTest int

	// BalanceProp is validated and defaulted but not read by any cache or
	// tree operation: neither the rebalance trigger nor Balance's choice
	// of split direction depends on it. Must be >= 1. Default: 1.5.
	BalanceProp float64

	// MRUSize bounds the most-recently-used list consulted by Retrieve
	// before falling back to the tree. 0 disables the MRU list.
	// Default: 0.
	MRUSize int

	// MRURetrieve enables MRU-list lookups inside Retrieve. Default: false.
	MRURetrieve bool

	// Max2ndRetBalance is the maximum proportion of retrieves that may be
	// resolved by secondary search before CleanAndBalance is forced on the
	// next opportunity. Must be in [0, 1]. Default: 0.2.
	Max2ndRetBalance float64

	// MaxDepthFactor bounds tree depth as a multiple of log2(size) before a
	// rebalance is triggered regardless of Max2ndRetBalance. Must be >= 1.
	// Default: 2.0.
	MaxDepthFactor float64

	// CheckEntireTreeInterval is the simulated-time interval between full
	// tree sweeps that evict leaves past their age or use limits. 0
	// disables the sweep. Default: 0.
	CheckEntireTreeInterval float64

	// ChPMaxLifeTime is the maximum simulated time a leaf may exist before
	// it becomes eligible for eviction during a sweep. 0 means unbounded.
	// Default: 0.
	ChPMaxLifeTime float64

	// ChPMaxUseInterval is the maximum simulated time a leaf may go
	// between uses before it becomes eligible for eviction. 0 means
	// unbounded. Default: 0.
	ChPMaxUseInterval float64

	// Clean is the master switch for CleanAndBalance. When false,
	// CleanAndBalance never walks the tree. Default: true.
	Clean bool

	// TauStar is opaque to the cache: it affects how the caller's
	// integrator treats simulated time and isat never branches on it.
	// Default: false.
	TauStar bool

	// CheckUsed flags a leaf for re-verification once the number of
	// retrieve hits on it since insertion reaches CheckUsed times the
	// tree's current size. The cache never clears the flag. 0 disables
	// use-triggered flagging. Default: 0.
	CheckUsed float64

	// CheckGrown is the number of Grow calls a leaf may accumulate before
	// it is flagged for re-verification. 0 disables grow-triggered
	// re-verification. Default: 0.
	CheckGrown int
}

// Result mirrors a single Retrieve outcome, returned by
// ISATCache.RetrieveResult for callers that want to log or batch retrieve
// statistics. ISATCache.Retrieve itself returns (bool, *CompositionPoint).
type Result struct {
	Hit               bool
	Leaf              *CompositionPoint
	SecondaryUsed     bool
	NeedsRevalidation bool
}

// DefaultConfig returns a Config with reasonable defaults for a cache over
// n composition dimensions (all scale factors set to 1).
func DefaultConfig(n int) Config {
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1.0
	}
	return Config{
		Tolerance:        1e-4,
		ScaleFactor:      scale,
		MaxElements:      100000,
		Max2ndSearch:     10,
		MinBalanceThreshold: 1000,
		BalanceProp:      1.5,
		Max2ndRetBalance: 0.2,
		MaxDepthFactor:   2.0,
		Clean:            true,
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive
// error if not.
func validateConfig(cfg *Config) error {
	if cfg.Tolerance <= 0 {
		return fmt.Errorf("isat: Tolerance must be > 0, got %g", cfg.Tolerance)
	}
	for i, s := range cfg.ScaleFactor {
		if s <= 0 {
			return fmt.Errorf("isat: ScaleFactor[%d] must be > 0, got %g", i, s)
		}
	}
	if cfg.MaxElements < 0 {
		return fmt.Errorf("isat: MaxElements must be >= 0, got %d", cfg.MaxElements)
	}
	if cfg.Max2ndSearch < 0 {
		return fmt.Errorf("isat: Max2ndSearch must be >= 0, got %d", cfg.Max2ndSearch)
	}
	if cfg.MinBalanceThreshold < 0 {
		return fmt.Errorf("isat: MinBalanceThreshold must be >= 0, got %d", cfg.MinBalanceThreshold)
	}
	if cfg.MaxNbBalanceTest < 0 {
		return fmt.Errorf("isat: MaxNbBalanceTest must be >= 0, got %d", cfg.MaxNbBalanceTest)
	}
	if cfg.BalanceProp < 1 {
		return fmt.Errorf("isat: BalanceProp must be >= 1, got %g", cfg.BalanceProp)
	}
	if cfg.MRUSize < 0 {
		return fmt.Errorf("isat: MRUSize must be >= 0, got %d", cfg.MRUSize)
	}
	if cfg.Max2ndRetBalance < 0 || cfg.Max2ndRetBalance > 1 {
		return fmt.Errorf("isat: Max2ndRetBalance must be in [0, 1], got %g", cfg.Max2ndRetBalance)
	}
	if cfg.MaxDepthFactor < 1 {
		return fmt.Errorf("isat: MaxDepthFactor must be >= 1, got %g", cfg.MaxDepthFactor)
	}
	if cfg.CheckEntireTreeInterval < 0 {
		return fmt.Errorf("isat: CheckEntireTreeInterval must be >= 0, got %g", cfg.CheckEntireTreeInterval)
	}
	if cfg.ChPMaxLifeTime < 0 {
		return fmt.Errorf("isat: ChPMaxLifeTime must be >= 0, got %g", cfg.ChPMaxLifeTime)
	}
	if cfg.ChPMaxUseInterval < 0 {
		return fmt.Errorf("isat: ChPMaxUseInterval must be >= 0, got %g", cfg.ChPMaxUseInterval)
	}
	if cfg.CheckUsed < 0 {
		return fmt.Errorf("isat: CheckUsed must be >= 0, got %g", cfg.CheckUsed)
	}
	if cfg.CheckGrown < 0 {
		return fmt.Errorf("isat: CheckGrown must be >= 0, got %d", cfg.CheckGrown)
	}
	return nil
}

// applyDefaults fills in zero-valued config fields with their defaults.
// n is the composition dimension, used only to size ScaleFactor when absent.
func applyDefaults(cfg *Config, n int) {
	if cfg.Tolerance == 0 {
		cfg.Tolerance = 1e-4
	}
	if len(cfg.ScaleFactor) == 0 {
		cfg.ScaleFactor = make([]float64, n)
		for i := range cfg.ScaleFactor {
			cfg.ScaleFactor[i] = 1.0
		}
	}
	if cfg.MaxElements == 0 {
		cfg.MaxElements = 100000
	}
	if cfg.BalanceProp == 0 {
		cfg.BalanceProp = 1.5
	}
	if cfg.Max2ndRetBalance == 0 {
		cfg.Max2ndRetBalance = 0.2
	}
	if cfg.MaxDepthFactor == 0 {
		cfg.MaxDepthFactor = 2.0
	}
	if cfg.MinBalanceThreshold == 0 {
		cfg.MinBalanceThreshold = 1000
	}
}

// maxDepthFor returns the depth above which Config.MaxDepthFactor triggers
// a rebalance for a tree holding size leaves.
func maxDepthFor(cfg *Config, size int) int {
	if size <= 1 {
		return 1
	}
	ideal := math.Log2(float64(size))
	return int(math.Ceil(ideal * cfg.MaxDepthFactor))
}
