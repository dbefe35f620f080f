package common

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VALIDATOR_TEMPLATES_DIR", "/etc/validator/templates")

	cfg := LoadConfig()
	if cfg.Templates.Dir != "/etc/validator/templates" {
		t.Fatalf("dir = %q", cfg.Templates.Dir)
	}
	if cfg.Compare.AmountTolerance != 1.0 {
		t.Fatalf("tolerance = %v", cfg.Compare.AmountTolerance)
	}
	if cfg.Enrich.Timeout != 8*time.Second {
		t.Fatalf("timeout = %v", cfg.Enrich.Timeout)
	}
	if cfg.Enrich.Disabled {
		t.Fatal("enrichment should default to enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("VALIDATOR_TEMPLATES_DIR", "/tmp/t")
	t.Setenv("VALIDATOR_QR_SCALES", "1.5, 3.0")
	t.Setenv("VALIDATOR_QR_MAX_PAGES", "4")
	t.Setenv("VALIDATOR_AMOUNT_TOLERANCE", "0.5")
	t.Setenv("VALIDATOR_ENRICH_TIMEOUT", "30s")
	t.Setenv("VALIDATOR_ENRICH_DISABLED", "true")

	cfg := LoadConfig()
	if len(cfg.QR.Scales) != 2 || cfg.QR.Scales[0] != 1.5 || cfg.QR.Scales[1] != 3.0 {
		t.Fatalf("scales = %v", cfg.QR.Scales)
	}
	if cfg.QR.MaxPages != 4 {
		t.Fatalf("max pages = %d", cfg.QR.MaxPages)
	}
	if cfg.Compare.AmountTolerance != 0.5 {
		t.Fatalf("tolerance = %v", cfg.Compare.AmountTolerance)
	}
	if cfg.Enrich.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.Enrich.Timeout)
	}
	if !cfg.Enrich.Disabled {
		t.Fatal("enrichment should be disabled")
	}
}

func TestLoadConfigBadScalesFallsBack(t *testing.T) {
	t.Setenv("VALIDATOR_QR_SCALES", "1.5,potato")
	cfg := LoadConfig()
	if cfg.QR.Scales != nil {
		t.Fatalf("scales = %v, want nil fallback", cfg.QR.Scales)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing dir", Config{}},
		{"negative tolerance", Config{
			Templates: TemplatesConfig{Dir: "/t"},
			Compare:   CompareConfig{AmountTolerance: -1},
		}},
		{"zero scale", Config{
			Templates: TemplatesConfig{Dir: "/t"},
			QR:        QRConfig{Scales: []float64{1.4, 0}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
