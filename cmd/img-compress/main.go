package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"img-compress-go/internal/codec"
	"img-compress-go/internal/compressor"
	"img-compress-go/internal/config"
	"img-compress-go/internal/logger"
	"img-compress-go/internal/search"
	"img-compress-go/internal/statistics"
	"img-compress-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	inputPath  string
	outputDir  string
	formatTag  string
	targetKB   int
	minQuality int
	maxQuality int
	background string
	force      bool
	verbose    bool
	quiet      bool
	quality    int
	port       int
)

// rootCmd is the base command: compress one image to a target size.
var rootCmd = &cobra.Command{
	Use:   "img-compress",
	Short: "Compress an image to a target maximum size with the best possible quality",
	Long: `img-compress shrinks a single image to fit a byte budget. For lossy
formats (JPEG, WebP) it binary-searches the encoder quality knob for the
highest quality whose output still fits the target. PNG is lossless, so
it gets one best-effort encode at maximum compression instead.

Features:
- Binary search over quality, O(log n) encodes per image
- JPEG, WebP and PNG outputs; alpha is flattened for JPEG
- EXIF metadata preserved on JPEG-to-JPEG conversion
- Force mode to emit the smallest possible result when the target is
  unreachable within the quality bounds
- Web interface with live per-probe progress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(args)
	},
}

// probeCmd encodes once at a fixed quality and reports the size.
var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Encode a file once at a fixed quality and print the resulting size",
	Long: `Performs a single encode-and-measure at the given quality and prints
the byte size. Useful for checking how an image responds to the quality
knob before picking a target.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(args[0])
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts a web server with a graphical interface for img-compress.
The web interface allows you to:
- Submit compression requests
- Watch the quality search probe by probe in real time
- View results and statistics

Access the interface at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	rootCmd.Flags().StringVar(&inputPath, "input", "", "source image file (jpg/png/webp)")
	rootCmd.Flags().IntVar(&targetKB, "target-kb", 0, "target maximum output size in KB")
	rootCmd.Flags().StringVar(&formatTag, "format", "", "output format: jpg, webp or png (default from config)")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "destination directory (must differ from the input directory)")
	rootCmd.Flags().IntVar(&minQuality, "min-quality", 0, "minimum quality for the search (default from config)")
	rootCmd.Flags().IntVar(&maxQuality, "max-quality", 0, "maximum quality for the search (default from config)")
	rootCmd.Flags().StringVar(&background, "bg", "", "background color for flattening alpha onto JPEG (default #ffffff)")
	rootCmd.Flags().BoolVar(&force, "force", false, "write the minimum-quality result even when the target is unreachable")

	probeCmd.Flags().StringVar(&formatTag, "format", "jpg", "output format: jpg, webp or png")
	probeCmd.Flags().IntVar(&quality, "quality", 85, "quality value to probe")

	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig loads configuration file and environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.img-compress")
		viper.AddConfigPath("/etc/img-compress")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// runCompress executes the main compression logic.
func runCompress(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if inputPath == "" && len(args) > 0 {
		inputPath = args[0]
	}
	if inputPath == "" {
		return fmt.Errorf("--input is required")
	}
	if !fileExists(inputPath) {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	format, err := search.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	bg, err := codec.ParseHexColor(cfg.Background)
	if err != nil {
		return err
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	comp := compressor.NewDefaultCompressor(log, stats)

	params := compressor.CompressionParams{
		InputPaths:  []string{inputPath},
		OutputDir:   cfg.OutputDirectory,
		Format:      format,
		TargetBytes: cfg.TargetBytes(),
		Bounds:      cfg.Bounds(),
		Background:  bg,
		Force:       cfg.Force,
		SkipMarked:  cfg.SkipMarked,
		Workers:     cfg.Performance.WorkerThreads,
		Observer: func(path string, q int, size int64, feasible bool) {
			log.WithFields(logrus.Fields{
				"file":     path,
				"quality":  q,
				"size":     size,
				"feasible": feasible,
			}).Debug("probe")
		},
	}

	results, err := comp.Compress(context.Background(), params)
	if err != nil {
		return err
	}

	r := results[0]
	if r.Error != nil {
		return fmt.Errorf("compression failed: %w", r.Error)
	}

	if !quiet {
		fmt.Printf("Output: %s\n", r.OutputPath)
		if r.Quality > 0 {
			fmt.Printf("Quality %d, %d probes, %d -> %d bytes (%.1f%% saved)\n",
				r.Quality, r.Probes, r.OriginalSize, r.CompressedSize, r.PercentageSaved)
		} else {
			fmt.Printf("Lossless, %d -> %d bytes (%.1f%% saved)\n",
				r.OriginalSize, r.CompressedSize, r.PercentageSaved)
		}
		if r.Message != "" {
			fmt.Printf("Note: %s\n", r.Message)
		}
		fmt.Println("\n" + stats.GetSummary())
	}

	return nil
}

// runProbe performs one encode at a fixed quality and prints the size.
func runProbe(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	format, err := search.ParseFormat(formatTag)
	if err != nil {
		return err
	}

	img, err := codec.Decode(filePath)
	if err != nil {
		return &search.CodecError{Op: "decode", Format: formatTag, Err: err}
	}
	if format == search.JPEG {
		img = codec.Flatten(img, codec.MustParseHexColor("#ffffff"))
	}

	enc, err := codec.NewRegistry().Get(format.String())
	if err != nil {
		return &search.CodecError{Op: "select", Format: format.String(), Err: err}
	}

	oracle := search.NewEncodeOracle(img, enc, nil)
	r, err := oracle.Probe(quality)
	if err != nil {
		return err
	}

	fmt.Printf("Format:  %s\n", format)
	fmt.Printf("Quality: %d\n", r.Quality)
	fmt.Printf("Size:    %d bytes (%.2f KB)\n", r.Size, float64(r.Size)/1024.0)
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CONFIG LOAD ERROR: %v\n", err)
		cfg = config.DefaultConfig()
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("img-compress web interface started on http://localhost:%d\n", port)
	fmt.Println("Press Ctrl+C to stop the server")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	if targetKB > 0 {
		cfg.TargetKB = targetKB
	}
	if formatTag != "" {
		cfg.Format = formatTag
	}
	if outputDir != "" {
		cfg.OutputDirectory = outputDir
	}
	if minQuality > 0 {
		cfg.Quality.Min = minQuality
	}
	if maxQuality > 0 {
		cfg.Quality.Max = maxQuality
	}
	if background != "" {
		cfg.Background = background
	}
	if force {
		cfg.Force = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TargetKB <= 0 {
		return nil, &search.BoundsError{Reason: "--target-kb must be positive"}
	}

	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.Config{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.New(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// exitCode maps error categories to distinct process exit codes:
// 3 for an unreachable target, 2 for codec failures, 1 otherwise.
func exitCode(err error) int {
	var infeasible *search.InfeasibleError
	if errors.As(err, &infeasible) {
		return 3
	}
	var codecErr *search.CodecError
	if errors.As(err, &codecErr) {
		return 2
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
