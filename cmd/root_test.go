package cmd

import (
	"testing"

	"github.com/spf13/viper"

	"github.com/kiesman99/globestitch/internal/projection"
	"github.com/kiesman99/globestitch/pkg/tile"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"png", tile.FormatPNG, false},
		{"raw", tile.FormatRaw, false},
		{"rgba", tile.FormatRaw, false},
		{"geotiff", 0, true},
	}
	for _, tt := range tests {
		got, err := parseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseFormat(%q) = %d, expected %d", tt.in, got, tt.want)
		}
	}
}

func TestFetchOptions_Headers(t *testing.T) {
	t.Cleanup(func() { viper.Set("header", nil) })

	viper.Set("header", []string{"Authorization: Bearer abc", "X-Key:42"})
	opts, err := fetchOptions()
	if err != nil {
		t.Fatalf("fetchOptions failed: %v", err)
	}
	if opts.Headers["Authorization"] != "Bearer abc" || opts.Headers["X-Key"] != "42" {
		t.Errorf("Unexpected headers %v", opts.Headers)
	}

	viper.Set("header", []string{"no separator"})
	if _, err := fetchOptions(); err == nil {
		t.Error("Expected an error for a header without a colon")
	}
}

func TestGlobeConfig(t *testing.T) {
	t.Cleanup(func() {
		viper.Set("row-order", "top-down")
		viper.Set("projection", "equirectangular")
	})

	viper.Set("row-order", "bottom-up")
	viper.Set("projection", "mercator")
	cfg, err := globeConfig()
	if err != nil {
		t.Fatalf("globeConfig failed: %v", err)
	}
	if cfg.RowOrder != tile.BottomUp || cfg.Projection != projection.ToMercator {
		t.Errorf("Unexpected config %+v", cfg)
	}

	viper.Set("projection", "gnomonic")
	if _, err := globeConfig(); err == nil {
		t.Error("Expected an error for an unknown projection")
	}
}
