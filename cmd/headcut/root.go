package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dudu/headcut/internal/detector"
	"github.com/dudu/headcut/internal/logger"
	"github.com/dudu/headcut/internal/pipeline"
)

// Options holds flags shared by every command
type Options struct {
	Quality     string
	Backend     string
	CascadePath string
	SCRFDPath   string
	ORTLibrary  string
	OutDir      string
	Verbose     bool
}

// Version is the application version.
const Version = "0.1.0"

var opts Options

var rootCmd = &cobra.Command{
	Use:           "headcut",
	Short:         "Cut heads out of photos and swap faces between them",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup(opts.Verbose); err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		pipeline.Setup()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", logger.LoggerOptions{Key: "error", Data: err.Error()})
		logger.Sync()
		fmt.Fprintln(os.Stderr, pipeline.Message(err))
		os.Exit(1)
	}
}

func init() {
	defaults := detector.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.Quality, "quality", "q", string(pipeline.QualityFast), "Preset: fast, balanced or high")
	flags.StringVar(&opts.Backend, "detector", string(defaults.Backend), "Face detector: cascade or scrfd")
	flags.StringVar(&opts.CascadePath, "cascade", defaults.CascadePath, "Haar cascade XML for the cascade detector")
	flags.StringVar(&opts.SCRFDPath, "scrfd", defaults.SCRFDPath, "SCRFD ONNX model for the scrfd detector")
	flags.StringVar(&opts.ORTLibrary, "ort-lib", defaults.ORTLibrary, "ONNX Runtime shared library")
	flags.StringVarP(&opts.OutDir, "out-dir", "o", "", "Also write result images to this directory")
	flags.BoolVar(&opts.Verbose, "verbose", false, "Development logging")
}

// newPipeline builds a pipeline from the shared flags.
func newPipeline(debug bool) (*pipeline.Pipeline, error) {
	quality, err := pipeline.ParseQuality(opts.Quality)
	if err != nil {
		return nil, err
	}
	config, err := pipeline.ConfigFor(quality)
	if err != nil {
		return nil, err
	}
	config.Debug = debug
	config.Detector.Backend = detector.Backend(opts.Backend)
	config.Detector.CascadePath = opts.CascadePath
	config.Detector.SCRFDPath = opts.SCRFDPath
	config.Detector.ORTLibrary = opts.ORTLibrary
	return pipeline.New(config)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOut stores data under --out-dir, if one was given.
func writeOut(name string, data []byte) error {
	if opts.OutDir == "" {
		return nil
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(opts.OutDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info("wrote result", logger.LoggerOptions{Key: "path", Data: path})
	return nil
}
