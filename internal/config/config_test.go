package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:               8100,
		TurnInterval:       time.Second,
		DBPath:             "./data/simulation.db",
		RosterSource:       RosterStatic,
		GraphQLURL:         "http://localhost:8000/graphql",
		SyntheticSeed:      42,
		SyntheticCountries: 6,
		ResourceKind:       "oil",
		OfferTTL:           3,
		ClearingMode:       ClearingDirect,
		LogLevel:           "INFO",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"book clearing passes", func(c *Config) { c.ClearingMode = ClearingBook }, false},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"unknown roster source", func(c *Config) { c.RosterSource = "csv" }, true},
		{"graphql without url", func(c *Config) {
			c.RosterSource = RosterGraphQL
			c.GraphQLURL = ""
		}, true},
		{"zero synthetic countries", func(c *Config) { c.SyntheticCountries = 0 }, true},
		{"empty resource", func(c *Config) { c.ResourceKind = "" }, true},
		{"zero ttl", func(c *Config) { c.OfferTTL = 0 }, true},
		{"unknown clearing mode", func(c *Config) { c.ClearingMode = "auction" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("CLEARING_MODE", "book")
	t.Setenv("SYNTHETIC_COUNTRIES", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000 from env", cfg.Port)
	}
	if cfg.ClearingMode != ClearingBook {
		t.Errorf("ClearingMode = %q, want book from env", cfg.ClearingMode)
	}
	// Unparseable integers fall back to the default.
	if cfg.SyntheticCountries != 6 {
		t.Errorf("SyntheticCountries = %d, want default 6", cfg.SyntheticCountries)
	}
}
