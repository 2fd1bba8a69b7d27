package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/globestitch/internal/fetch"
	"github.com/kiesman99/globestitch/internal/globe"
	"github.com/kiesman99/globestitch/internal/logging"
	"github.com/kiesman99/globestitch/internal/projection"
	"github.com/kiesman99/globestitch/pkg/tile"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "globestitch",
	Short: "Build an equirectangular globe texture from web map tiles",
	Long: `globestitch downloads every tile of a slippy-map service at the zoom level
matching the requested texture size, stitches them into one Web-Mercator
raster and reprojects it to an equirectangular (plate carree) texture that
wraps a sphere.

The texture is written as PNG or raw RGBA. Optionally, a separate worldfile
with georeferencing data can be written.

Examples:
  # 1024x1024 OpenStreetMap globe texture (zoom 2, 16 tiles)
  globestitch --size 1024 -o earth.png

  # Bottom-up rows for OpenGL texture upload, raw RGBA
  globestitch --size 2048 --row-order bottom-up -f raw -o earth.rgba

  # Custom tile source with host sharding and a world file
  globestitch --url 'https://{switch:a,b,c}.tile.opentopomap.org/{z}/{x}/{y}.png' -w -o topo.png

  # Keep the stitched Web-Mercator raster
  globestitch --size 512 --mercator -o mercator.png

  # Start HTTP server
  globestitch serve --port 8080`,
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
	RunE: runGlobe,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.globestitch.yaml)")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")

	// Tile source options, shared with serve
	flags.StringP("url", "u", tile.DefaultTemplate, "tile URL template with {z}, {x}, {y} and optional {switch:a,b,c}")
	flags.StringSlice("overlay", nil, "overlay tile URL template(s) blended over the base layer")
	flags.IntP("concurrency", "c", 8, "maximum concurrent tile requests (0 = unbounded)")
	flags.Float64("rate", 0, "maximum tile requests per second (0 = unlimited)")
	flags.Int("retries", 0, "extra attempts for tiles failing with 429, 5xx or network errors")
	flags.Duration("tile-timeout", 30*time.Second, "timeout of a single tile request")
	flags.String("user-agent", fetch.DefaultUserAgent, "HTTP User-Agent header")
	flags.StringSlice("header", nil, "extra HTTP header as 'Name: value' (repeatable)")
	flags.Int("cache-size", 0, "number of encoded tiles kept in memory (0 = no cache)")
	flags.String("row-order", "top-down", "row order of the texture (top-down|bottom-up)")
	flags.String("projection", "equirectangular", "projection of the texture (equirectangular|mercator)")

	// Output options
	rootCmd.Flags().IntP("size", "s", globe.DefaultEdgePixels,
		fmt.Sprintf("texture edge length in pixels (%d-%d)", tile.Size, globe.MaxEdgePixels))
	rootCmd.Flags().Bool("mercator", false, "skip reprojection and write the stitched Web-Mercator raster")
	rootCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	rootCmd.Flags().StringP("format", "f", "png", "output format (png|raw)")
	rootCmd.Flags().BoolP("worldfile", "w", false, "write world file")

	// Bind flags to viper
	for _, name := range []string{
		"log-level", "url", "overlay", "concurrency", "rate", "retries", "tile-timeout",
		"user-agent", "header", "cache-size", "row-order", "projection",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
	for _, name := range []string{"size", "mercator", "output", "format", "worldfile"} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".globestitch" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".globestitch")
	}

	viper.SetEnvPrefix("GLOBESTITCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogging installs a stderr logger for the library packages.
func setupLogging() error {
	level, err := logging.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	logging.SetLogger(logging.NewTextLogger(os.Stderr, level))
	return nil
}

// fetchOptions builds tile source options from flags and config.
func fetchOptions() (*fetch.Options, error) {
	headers := make(map[string]string)
	for _, h := range viper.GetStringSlice("header") {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q (want 'Name: value')", h)
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	return &fetch.Options{
		UserAgent:         viper.GetString("user-agent"),
		Headers:           headers,
		Timeout:           viper.GetDuration("tile-timeout"),
		Retries:           viper.GetInt("retries"),
		RequestsPerSecond: viper.GetFloat64("rate"),
		CacheSize:         viper.GetInt("cache-size"),
	}, nil
}

// globeConfig builds the texture target from flags and config.
func globeConfig() (globe.Config, error) {
	order, err := tile.ParseRowOrder(viper.GetString("row-order"))
	if err != nil {
		return globe.Config{}, err
	}
	dir, ok := projection.ParseDirection(viper.GetString("projection"))
	if !ok {
		return globe.Config{}, fmt.Errorf("unknown projection %q (want equirectangular or mercator)", viper.GetString("projection"))
	}

	return globe.Config{
		TargetEdgePixels:     viper.GetInt("size"),
		TileTemplateURL:      viper.GetString("url"),
		OverlayTemplateURLs:  viper.GetStringSlice("overlay"),
		MaxConcurrentFetches: viper.GetInt("concurrency"),
		RowOrder:             order,
		Projection:           dir,
		SkipReprojection:     viper.GetBool("mercator"),
	}, nil
}

func parseFormat(s string) (int, error) {
	switch s {
	case "png":
		return tile.FormatPNG, nil
	case "raw", "rgba":
		return tile.FormatRaw, nil
	}
	return 0, fmt.Errorf("unknown format: %s", s)
}

func runGlobe(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(viper.GetString("format"))
	if err != nil {
		return err
	}
	cfg, err := globeConfig()
	if err != nil {
		return err
	}
	opts, err := fetchOptions()
	if err != nil {
		return err
	}

	output := viper.GetString("output")
	var worldFile string
	if viper.GetBool("worldfile") {
		if worldFile, err = tile.WorldFileName(output, format); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	producer := globe.NewProducer(globe.HTTPSources(opts))
	defer producer.Close()

	tex, err := producer.Produce(ctx, cfg)
	if err != nil {
		return err
	}
	if err := tex.Report.Err(); err != nil {
		return err
	}
	if n := len(tex.Report.FailedTiles); n > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d of %d tiles failed and were left blank\n", n, tex.Report.TotalTiles)
	}

	if err := tile.WriteImage(output, tex.Image, format); err != nil {
		return fmt.Errorf("failed to write texture: %w", err)
	}
	if worldFile != "" {
		if err := os.WriteFile(worldFile, tex.WorldFile(), 0o644); err != nil {
			return fmt.Errorf("failed to write world file: %w", err)
		}
	}
	return nil
}
