// Command gpu-detect prints the graphics adapter report for this machine.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AnalyseDeCircuit/gpu-detect/internal/backend"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/config"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu"
	"github.com/AnalyseDeCircuit/gpu-detect/internal/gpu/drm"
	"github.com/spf13/cobra"
)

const defaultBufferSize = 4096

type options struct {
	backend    string
	fixture    string
	sysfsRoot  string
	bufferSize int
	verbose    bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "gpu-detect",
	Short: "List graphics adapters as INTEGRATED or DEDICATED",
	Long: `gpu-detect enumerates the graphics adapters on this machine and prints
one line per adapter:

  INTEGRATED : <name>
  DEDICATED : <name>

Failures are reported as lines in the same text.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if opts.verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		if opts.verbose {
			gpu.SetLogger(logger)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd.OutOrStdout(), opts)
	},
}

func runReport(out io.Writer, o options) error {
	api, err := backend.New(backend.Options{
		Name:        o.backend,
		FixturePath: o.fixture,
		SysRoot:     o.sysfsRoot,
		PCIIDs:      drm.DefaultPCIIDPaths(config.HostPath),
	})
	if err != nil {
		return err
	}

	report, err := gpu.Detect(make([]byte, o.bufferSize), api)
	if err != nil {
		return fmt.Errorf("buffer size %d: %w", o.bufferSize, err)
	}
	_, err = out.Write(report)
	return err
}

func init() {
	cfg := config.Load()

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.backend, "backend", "b", cfg.Backend, "enumeration backend (auto, dxgi, nvml, drm, fixture)")
	flags.StringVar(&opts.fixture, "fixture", cfg.FixturePath, "YAML adapter list for the fixture backend")
	flags.StringVar(&opts.sysfsRoot, "sysfs-root", cfg.HostSys, "sysfs mount read by the drm backend")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log skipped adapters and probe failures to stderr")

	rootCmd.Flags().IntVar(&opts.bufferSize, "buffer-size", defaultBufferSize, "report buffer size in bytes")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
