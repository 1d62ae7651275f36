package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joshsymonds/footprint/internal/policy"
)

func TestRunWritesMetricsOnEveryPath(t *testing.T) {
	tests := []struct {
		name    string
		cfg     policyConfig
		wantErr error
	}{
		{name: "history", cfg: policyConfig{history: true}},
		{name: "show missing", cfg: policyConfig{show: "01MISSING"}, wantErr: policy.ErrNotFound},
		{name: "feedback missing", cfg: policyConfig{feedback: "01MISSING"}, wantErr: policy.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.prom")
			cfg := tt.cfg
			cfg.user = "u1"
			cfg.timeout = 5 * time.Second
			cfg.metricsFile = path

			err := run(cfg)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("run: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("run err = %v, want %v", err, tt.wantErr)
			}
			raw, readErr := os.ReadFile(path)
			if readErr != nil {
				t.Fatalf("metrics file: %v", readErr)
			}
			if !strings.Contains(string(raw), "footprint_discovery_messages_fetched_total 0") {
				t.Fatalf("metrics file:\n%s", raw)
			}
		})
	}
}
