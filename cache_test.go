package isat

import (
	"errors"
	"testing"
)

func TestNewCache_AppliesDefaultsAndValidates(t *testing.T) {
	c, err := NewCache(2, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.cfg.Tolerance != 1e-4 {
		t.Errorf("Tolerance default = %v, want 1e-4", c.cfg.Tolerance)
	}
	if len(c.cfg.ScaleFactor) != 2 {
		t.Errorf("ScaleFactor default length = %d, want 2", len(c.cfg.ScaleFactor))
	}
}

func TestNewCache_RejectsInvalidConfig(t *testing.T) {
	_, err := NewCache(2, Config{Tolerance: -1})
	if err == nil {
		t.Fatal("expected an error for a negative Tolerance")
	}
}

func TestCache_Retrieve_EmptyCacheMiss(t *testing.T) {
	c, err := NewCache(2, DefaultConfig(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hit, leaf := c.Retrieve([]float64{0, 0}, 0)
	if hit || leaf != nil {
		t.Error("Retrieve on an empty cache must report a miss with a nil leaf")
	}
}

func TestCache_AddAndRetrieve_PrimaryHit(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.Tolerance = 0.1
	c, err := NewCache(2, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	phi := []float64{1, 1}
	rphi := []float64{1, 1}
	leaf, err := c.Add(phi, rphi, diagGradient(2, 1), 0, nil)
	if err != nil {
		t.Fatalf("unexpected error adding: %v", err)
	}
	hit, got := c.Retrieve(phi, 0)
	if !hit {
		t.Fatal("Retrieve must hit for the exact composition just added")
	}
	if got != leaf {
		t.Error("Retrieve returned a different leaf than the one just added")
	}
	if got.nUsed != 1 {
		t.Errorf("nUsed = %d, want 1 after a single retrieve hit", got.nUsed)
	}
}

func TestCache_Add_CapacityExceeded(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.MaxElements = 1
	c, err := NewCache(2, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Add([]float64{0, 0}, []float64{0, 0}, diagGradient(2, 1), 0, nil); err != nil {
		t.Fatalf("unexpected error on first add: %v", err)
	}
	_, err = c.Add([]float64{5, 5}, []float64{5, 5}, diagGradient(2, 1), 0, nil)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("err = %v, want ErrCapacityExceeded", err)
	}
	if c.Size() != 1 {
		t.Errorf("size after rejected add = %d, want 1", c.Size())
	}
}

func TestCache_Add_DegenerateGradient(t *testing.T) {
	c, err := NewCache(2, DefaultConfig(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = c.Add([]float64{0, 0}, []float64{0, 0}, diagGradient(2, 0), 0, nil)
	if !errors.Is(err, ErrDegenerateEOA) {
		t.Errorf("err = %v, want ErrDegenerateEOA", err)
	}
	if c.Size() != 0 {
		t.Errorf("size after rejected add = %d, want 0", c.Size())
	}
}

func TestCache_Grow_FlagsRevalidationAtThreshold(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.Tolerance = 0.01
	cfg.CheckGrown = 1
	c, err := NewCache(2, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf, err := c.Add([]float64{0, 0}, []float64{0, 0}, diagGradient(2, 1), 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	target := []float64{0.5, 0}
	if leaf.InEOA(target) {
		t.Fatal("test setup invalid: target should start outside the EOA")
	}
	if !c.Grow(leaf, target) {
		t.Fatal("Grow should report success extending the EOA")
	}
	if !leaf.needsRevalidation {
		t.Error("CheckGrown=1 should flag needsRevalidation after a single Grow")
	}
}

func TestCache_Grow_NoFlagBelowThreshold(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.Tolerance = 0.01
	cfg.CheckGrown = 5
	c, err := NewCache(2, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf, err := c.Add([]float64{0, 0}, []float64{0, 0}, diagGradient(2, 1), 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Grow(leaf, []float64{0.5, 0})
	if leaf.needsRevalidation {
		t.Error("a single Grow should not flag needsRevalidation when CheckGrown=5")
	}
}

func TestCache_CalcNewC_LinearExtrapolation(t *testing.T) {
	c, err := NewCache(2, DefaultConfig(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf, err := c.Add([]float64{0, 0}, []float64{1, 1}, diagGradient(2, 1), 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := c.CalcNewC(leaf, []float64{0.1, 0})
	want := []float64{1.1, 1}
	for i := range want {
		if diff := got[i] - want[i]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("CalcNewC[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCache_CalcNewC_InertDimensionPassesThrough(t *testing.T) {
	c, err := NewCache(3, DefaultConfig(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	grad := [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	rc := &ReductionContext{
		ActiveCount:  2,
		FullToActive: []int{0, -1, 1},
		ActiveToFull: []int{0, 2},
		InertIndex:   []int{1},
	}
	leaf, err := c.Add([]float64{0, 100, 0}, []float64{0, 100, 0}, grad, 0, rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := c.CalcNewC(leaf, []float64{0.1, 100, 0.2})
	if got[1] != 100 {
		t.Errorf("inert dimension result = %v, want unchanged 100", got[1])
	}
}

func TestCache_CleanAndBalance_NoopWhenCleanFalse(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.Clean = false
	c, err := NewCache(2, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := c.Add([]float64{float64(i), float64(i)}, []float64{0, 0}, diagGradient(2, 1), 0, nil); err != nil {
			t.Fatalf("unexpected error adding: %v", err)
		}
	}
	if c.CleanAndBalance(0) {
		t.Error("CleanAndBalance must report false and do nothing when Config.Clean is false")
	}
}

func TestCache_Clear_ResetsEverything(t *testing.T) {
	c, err := NewCache(2, DefaultConfig(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Add([]float64{0, 0}, []float64{0, 0}, diagGradient(2, 1), 0, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.Clear()
	if c.Size() != 0 {
		t.Errorf("size after Clear = %d, want 0", c.Size())
	}
	hit, _ := c.Retrieve([]float64{0, 0}, 0)
	if hit {
		t.Error("Retrieve after Clear must miss")
	}
}

func TestCache_MRU_HitsBeforeTreeSearch(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.MRURetrieve = true
	cfg.MRUSize = 4
	c, err := NewCache(2, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf, err := c.Add([]float64{0, 0}, []float64{0, 0}, diagGradient(2, 1), 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hit, got := c.Retrieve([]float64{0, 0}, 0)
	if !hit || got != leaf {
		t.Fatal("expected an MRU hit on the just-added leaf")
	}
	if c.mru.Len() != 1 {
		t.Errorf("mru length = %d, want 1", c.mru.Len())
	}
}
