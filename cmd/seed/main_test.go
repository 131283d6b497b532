package main

import (
	"testing"

	"caliseed/internal/config"
)

func TestParseFlags(t *testing.T) {
	defaults := config.GeneratorConfig{Count: 10, Seed: 0}

	tests := []struct {
		name    string
		args    []string
		want    config.GeneratorConfig
		wantErr bool
	}{
		{"defaults", nil, defaults, false},
		{"count and seed", []string{"-count=200", "-seed=42"}, config.GeneratorConfig{Count: 200, Seed: 42}, false},
		{"seed only", []string{"-seed", "7"}, config.GeneratorConfig{Count: 10, Seed: 7}, false},
		{"zero count", []string{"-count=0"}, config.GeneratorConfig{}, true},
		{"negative seed", []string{"-seed=-1"}, config.GeneratorConfig{}, true},
		{"unknown flag", []string{"-rows=5"}, config.GeneratorConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, defaults)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseFlags(%v) returned no error", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFlags(%v) returned error: %v", tt.args, err)
			}
			if got != tt.want {
				t.Errorf("parseFlags(%v) = %+v, want %+v", tt.args, got, tt.want)
			}
		})
	}
}
