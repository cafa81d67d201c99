package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	imageregistration "github.com/menta2k/image-registration"
	"github.com/menta2k/image-registration/internal/config"
	"github.com/menta2k/image-registration/internal/utils"
	"github.com/menta2k/image-registration/pkg/log"
	"github.com/menta2k/image-registration/pkg/processing"
)

var longHelp = strings.TrimSpace(`
Measure and correct translational misalignment between images.

Offsets are measured by phase correlation with sub-pixel refinement. Frames are
shifted with periodic boundaries and a whole stack can be cropped to the region
that no frame wrapped into.
`)

var exampleUsage = strings.TrimSpace(`
  image-registration measure frame0.png frame1.png --log
  image-registration shift in.png out.png --dy 2.5 --dx -1.25 --method fft
  image-registration align frames/ --out aligned/ --reference 0 --crop
  image-registration align a.tif b.tif c.tif --auto-reference --overlay
  image-registration crop --rows 10 --cols 10 --shifts0 0,2,-1 --shifts1 0,1,1
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return imageregistration.Version
}

// app carries the state shared by every subcommand
type app struct {
	cfgPath   string
	logLevel  string
	logFormat string

	cfg       *config.Config
	logger    log.Logger
	processor *processing.Processor
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{processor: processing.NewProcessor()}

	root := &cobra.Command{
		Use:           "image-registration",
		Short:         "Sub-pixel image registration by phase correlation",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", fmt.Sprintf("path to config file, .json or .toml (default: %s)", config.GetConfigPath()))
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "console", "log format: console|json")

	root.AddCommand(newMeasureCmd(a))
	root.AddCommand(newShiftCmd(a))
	root.AddCommand(newAlignCmd(a))
	root.AddCommand(newCropCmd(a))
	root.AddCommand(newConfigCmd(a))

	return root
}

// setup loads the config file, applies logging flags and builds the logger.
// An explicit --config must exist; the default path is optional.
func (a *app) setup(cmd *cobra.Command) error {
	changed := changedFlags(cmd)

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = config.GetConfigPath()
	}

	a.cfg = config.Default()
	if changed["config"] || utils.FileExists(cfgFile) {
		loaded, err := config.LoadFromFile(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = loaded
	}

	if changed["log-level"] {
		a.cfg.Logging.Level = a.logLevel
	}
	if changed["log-format"] {
		a.cfg.Logging.Format = a.logFormat
	}

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	a.logger = log.NewZerologAdapter(a.cfg.Logging.Level, a.cfg.Logging.Format)
	a.logger.Debug("configuration loaded", log.String("path", cfgFile), log.Any("config", a.cfg))
	return nil
}

// changedFlags returns the names of flags set on the command line
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}
