package isat

import "testing"

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig(3)
	if err := validateConfig(&cfg); err != nil {
		t.Fatalf("DefaultConfig(3) failed validation: %v", err)
	}
	if len(cfg.ScaleFactor) != 3 {
		t.Errorf("ScaleFactor length = %d, want 3", len(cfg.ScaleFactor))
	}
}

func TestValidateConfig_RejectsInvalidFields(t *testing.T) {
	base := DefaultConfig(2)

	cases := []struct {
		name    string
		mutate  func(c *Config)
	}{
		{"zero tolerance", func(c *Config) { c.Tolerance = 0 }},
		{"negative tolerance", func(c *Config) { c.Tolerance = -1 }},
		{"zero scale factor", func(c *Config) { c.ScaleFactor[0] = 0 }},
		{"negative scale factor", func(c *Config) { c.ScaleFactor[1] = -2 }},
		{"negative max elements", func(c *Config) { c.MaxElements = -1 }},
		{"negative max 2nd search", func(c *Config) { c.Max2ndSearch = -1 }},
		{"negative min balance threshold", func(c *Config) { c.MinBalanceThreshold = -1 }},
		{"negative max nb balance test", func(c *Config) { c.MaxNbBalanceTest = -1 }},
		{"balance prop below one", func(c *Config) { c.BalanceProp = 0.5 }},
		{"negative mru size", func(c *Config) { c.MRUSize = -1 }},
		{"2nd ret balance below zero", func(c *Config) { c.Max2ndRetBalance = -0.1 }},
		{"2nd ret balance above one", func(c *Config) { c.Max2ndRetBalance = 1.1 }},
		{"max depth factor below one", func(c *Config) { c.MaxDepthFactor = 0.9 }},
		{"negative check entire tree interval", func(c *Config) { c.CheckEntireTreeInterval = -1 }},
		{"negative chp max life time", func(c *Config) { c.ChPMaxLifeTime = -1 }},
		{"negative chp max use interval", func(c *Config) { c.ChPMaxUseInterval = -1 }},
		{"negative check used", func(c *Config) { c.CheckUsed = -1 }},
		{"negative check grown", func(c *Config) { c.CheckGrown = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			cfg.ScaleFactor = append([]float64(nil), base.ScaleFactor...)
			tc.mutate(&cfg)
			if err := validateConfig(&cfg); err == nil {
				t.Errorf("validateConfig accepted an invalid config for case %q", tc.name)
			}
		})
	}
}

func TestApplyDefaults_OnlyFillsZeroFields(t *testing.T) {
	cfg := Config{Tolerance: 1e-3, MaxElements: 5}
	applyDefaults(&cfg, 2)

	if cfg.Tolerance != 1e-3 {
		t.Errorf("Tolerance was overwritten: got %v, want 1e-3", cfg.Tolerance)
	}
	if cfg.MaxElements != 5 {
		t.Errorf("MaxElements was overwritten: got %v, want 5", cfg.MaxElements)
	}
	if len(cfg.ScaleFactor) != 2 {
		t.Errorf("ScaleFactor not defaulted: len = %d, want 2", len(cfg.ScaleFactor))
	}
	if cfg.BalanceProp != 1.5 {
		t.Errorf("BalanceProp not defaulted: got %v, want 1.5", cfg.BalanceProp)
	}
	if cfg.Max2ndRetBalance != 0.2 {
		t.Errorf("Max2ndRetBalance not defaulted: got %v, want 0.2", cfg.Max2ndRetBalance)
	}
	if cfg.MaxDepthFactor != 2.0 {
		t.Errorf("MaxDepthFactor not defaulted: got %v, want 2.0", cfg.MaxDepthFactor)
	}
	if cfg.MinBalanceThreshold != 1000 {
		t.Errorf("MinBalanceThreshold not defaulted: got %v, want 1000", cfg.MinBalanceThreshold)
	}
}

func TestMaxDepthFor_GrowsWithMaxDepthFactor(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.MaxDepthFactor = 2.0
	loose := maxDepthFor(&cfg, 1024)

	cfg.MaxDepthFactor = 1.0
	tight := maxDepthFor(&cfg, 1024)

	if loose <= tight {
		t.Errorf("maxDepthFor with MaxDepthFactor=2.0 (%d) should exceed MaxDepthFactor=1.0 (%d)", loose, tight)
	}
}

func TestMaxDepthFor_SmallTreeIsOne(t *testing.T) {
	cfg := DefaultConfig(2)
	if got := maxDepthFor(&cfg, 1); got != 1 {
		t.Errorf("maxDepthFor(size=1) = %d, want 1", got)
	}
	if got := maxDepthFor(&cfg, 0); got != 1 {
		t.Errorf("maxDepthFor(size=0) = %d, want 1", got)
	}
}
