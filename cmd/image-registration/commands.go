package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-registration/internal/config"
	"github.com/menta2k/image-registration/internal/utils"
	"github.com/menta2k/image-registration/pkg/cropper"
	"github.com/menta2k/image-registration/pkg/log"
	"github.com/menta2k/image-registration/pkg/processing"
	"github.com/menta2k/image-registration/pkg/stack"
	"github.com/menta2k/image-registration/pkg/types"
	"github.com/menta2k/image-registration/pkg/vision"
)

func newMeasureCmd(a *app) *cobra.Command {
	var (
		withLog   bool
		transform string
	)

	cmd := &cobra.Command{
		Use:   "measure <reference> <moving>",
		Short: "Measure the offset of one image relative to another",
		Long: `Measure the (dy, dx) translation of the moving image relative to the reference
by phase correlation. Shifting the moving image by the negated offset aligns it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := a.cfg.Registration
			if cmd.Flags().Changed("transform") {
				reg.Transform = transform
			}
			correlator, err := reg.Correlator()
			if err != nil {
				return err
			}

			ref, err := a.loadFrame(args[0])
			if err != nil {
				return err
			}
			moving, err := a.loadFrame(args[1])
			if err != nil {
				return err
			}

			res, err := correlator.MeasureOffset(ref, moving, withLog || reg.WithLog)
			if err != nil {
				return err
			}
			for _, line := range res.Logs {
				fmt.Fprintln(cmd.ErrOrStderr(), line)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.3f %.3f\n", res.Shift.DY, res.Shift.DX)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withLog, "log", false, "print coarse result, refined result and execution time")
	cmd.Flags().StringVar(&transform, "transform", "", "FFT backend: gonum|dsp")
	return cmd
}

func newShiftCmd(a *app) *cobra.Command {
	var (
		dy, dx    float64
		method    string
		normalize bool
		quality   int
	)

	cmd := &cobra.Command{
		Use:   "shift <input> <output>",
		Short: "Shift an image by a sub-pixel amount with wrap-around",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := changedFlags(cmd)
			if changed["method"] {
				a.cfg.Registration.ShiftMethod = method
			}
			if changed["normalize"] {
				a.cfg.Output.Normalize = normalize
			}
			if changed["quality"] {
				a.cfg.Output.Quality = quality
			}

			shifter, err := a.cfg.Registration.Shifter()
			if err != nil {
				return err
			}

			img, err := a.loadFrame(args[0])
			if err != nil {
				return err
			}

			v := types.ShiftVector{DY: dy, DX: dx}
			m := shifter.Resolve(a.cfg.Registration.Method())
			out, err := shifter.Shift(img, v, m)
			if err != nil {
				return err
			}

			if err := a.saveFrame(out, args[1], processing.FormatFromPath(args[1])); err != nil {
				return err
			}
			a.logger.Info("image shifted",
				log.String("input", args[0]),
				log.String("output", args[1]),
				log.String("shift", v.String()),
				log.String("method", m.String()),
			)
			return nil
		},
	}

	cmd.Flags().Float64Var(&dy, "dy", 0, "shift along rows (pixels)")
	cmd.Flags().Float64Var(&dx, "dx", 0, "shift along columns (pixels)")
	cmd.Flags().StringVar(&method, "method", "auto", "shift method: auto|fft|bilinear|library")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "stretch the output to the full intensity range")
	cmd.Flags().IntVar(&quality, "quality", 95, "JPEG/WebP output quality (1-100)")
	return cmd
}

func newAlignCmd(a *app) *cobra.Command {
	var (
		outDir    string
		reference int
		autoRef   bool
		method    string
		workers   int
		crop      bool
		format    string
		normalize bool
		overlay   bool
	)

	cmd := &cobra.Command{
		Use:   "align <files or directories>...",
		Short: "Align a stack of frames onto a reference frame",
		Long: `Measure every frame against the reference frame, shift it into place and crop
the stack to the window that no frame wrapped into. Directories are expanded to
their image files in lexical order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := changedFlags(cmd)
			cfg := a.cfg
			if changed["out"] {
				cfg.Output.OutputDir = outDir
			}
			if changed["reference"] {
				cfg.Registration.Reference = reference
			}
			if changed["auto-reference"] {
				cfg.Registration.AutoRef = autoRef
			}
			if changed["method"] {
				cfg.Registration.ShiftMethod = method
			}
			if changed["workers"] {
				cfg.Registration.Workers = workers
			}
			if changed["crop"] {
				cfg.Output.Crop = crop
			}
			if changed["format"] {
				cfg.Output.Format = format
			}
			if changed["normalize"] {
				cfg.Output.Normalize = normalize
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			inputs, err := utils.CollectImageFiles(args)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return types.ErrEmptyStack
			}

			frames := make([]stack.Frame, len(inputs))
			for i, path := range inputs {
				img, err := a.loadFrame(path)
				if err != nil {
					return err
				}
				frames[i] = stack.Frame{Name: path, Image: img}
			}

			if cfg.Registration.AutoRef {
				ref, err := selectReference(frames)
				if err != nil {
					return err
				}
				cfg.Registration.Reference = ref
				a.logger.Info("reference selected", log.String("frame", frames[ref].Name), log.Int("index", ref))
			}

			correlator, err := cfg.Registration.Correlator()
			if err != nil {
				return err
			}
			shifter, err := cfg.Registration.Shifter()
			if err != nil {
				return err
			}
			aligner := stack.NewWithConfig(correlator, shifter, a.logger, cfg.StackConfig())

			res, err := aligner.Align(cmd.Context(), frames)
			if err != nil {
				return err
			}

			if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-40s %10s %10s\n", "frame", "dy", "dx")
			for _, f := range res.Frames {
				path := utils.GenerateOutputFilename(f.Name, cfg.Output.OutputDir, cfg.Output.Prefix, cfg.Output.Suffix, cfg.Output.Format)
				if err := a.saveFrame(f.Image, path, cfg.Output.Format); err != nil {
					return fmt.Errorf("failed to save %s: %w", path, err)
				}
				size := int64(0)
				if info, err := os.Stat(path); err == nil {
					size = info.Size()
				}
				a.logger.Debug("frame saved", log.String("path", path), log.String("size", utils.FormatFileSize(size)))
				fmt.Fprintf(out, "%-40s %10.3f %10.3f\n", filepath.Base(f.Name), f.Offset.Shift.DY, f.Offset.Shift.DX)
			}
			fmt.Fprintf(out, "crop window: %s (valid: %t, applied: %t)\n",
				res.Window, res.Window.Valid(frames[0].Image.Rows, frames[0].Image.Cols), res.Cropped)

			if overlay {
				ref := frames[cfg.Registration.Reference].Image
				path := filepath.Join(cfg.Output.OutputDir, "crop_overlay.png")
				img := processing.CreateCropOverlay(processing.FromImageNormalized(ref), res.Window)
				if err := a.processor.SaveImage(img, path, "png", cfg.Output.Quality, true); err != nil {
					return fmt.Errorf("failed to save overlay: %w", err)
				}
				a.logger.Info("crop overlay saved", log.String("path", path))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "./aligned", "output directory")
	cmd.Flags().IntVar(&reference, "reference", 0, "index of the reference frame")
	cmd.Flags().BoolVar(&autoRef, "auto-reference", false, "use the sharpest frame as the reference")
	cmd.Flags().StringVar(&method, "method", "auto", "shift method: auto|fft|bilinear|library")
	cmd.Flags().IntVar(&workers, "workers", 0, "frames processed concurrently (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&crop, "crop", true, "crop aligned frames to the common valid window")
	cmd.Flags().StringVar(&format, "format", "png", "output format: png|jpg|tiff|webp")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "stretch each output to the full intensity range")
	cmd.Flags().BoolVar(&overlay, "overlay", false, "write crop_overlay.png showing the window on the reference frame")
	return cmd
}

func newCropCmd(a *app) *cobra.Command {
	var (
		rows, cols int
		s0, s1     []float64
	)

	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Compute the crop window for a set of applied shifts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := cropper.GetCropWindow(rows, cols, s0, s1)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %d %d %d\n", w.RowStart, w.RowEnd, w.ColStart, w.ColEnd)
			if !w.Valid(rows, cols) {
				a.logger.Warn("crop window is empty", log.String("window", w.String()))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 0, "image height")
	cmd.Flags().IntVar(&cols, "cols", 0, "image width")
	cmd.Flags().Float64SliceVar(&s0, "shifts0", nil, "shifts along rows, comma separated")
	cmd.Flags().Float64SliceVar(&s1, "shifts1", nil, "shifts along columns, comma separated")
	_ = cmd.MarkFlagRequired("rows")
	_ = cmd.MarkFlagRequired("cols")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration (.json or .toml)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if utils.FileExists(path) {
				return fmt.Errorf("config file already exists: %s", path)
			}
			if err := config.Default().SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(a.cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	return cmd
}

func selectReference(frames []stack.Frame) (int, error) {
	imgs := make([]types.Image, len(frames))
	for i, f := range frames {
		imgs[i] = f.Image
	}
	return vision.New().SelectReference(imgs)
}

func (a *app) loadFrame(source string) (types.Image, error) {
	decoded, err := a.processor.LoadImageSmart(source)
	if err != nil {
		return types.Image{}, fmt.Errorf("failed to load %s: %w", source, err)
	}
	if err := processing.ValidateImage(decoded, a.cfg.Registration.MinImageSize); err != nil {
		return types.Image{}, fmt.Errorf("%s: %w", source, err)
	}
	info := processing.GetImageInfo(decoded)
	a.logger.Debug("frame loaded",
		log.String("source", source),
		log.Int("width", info.Width),
		log.Int("height", info.Height),
	)
	return processing.ToImage(decoded), nil
}

func (a *app) saveFrame(img types.Image, path, format string) error {
	out := a.cfg.Output
	return a.processor.SaveFrame(img, path, format, out.Quality, out.Lossless, out.Normalize)
}
