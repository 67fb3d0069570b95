package commands

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"syscall"

	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/present"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/image/draw"
)

var stepCmd = &cobra.Command{
	Use:   "step [FILE|DIR]...",
	Short: "Step through images with the arrow keys",
	Long: `Open a window showing one image at a time. Right or keypad 6 shows the
next image, Left or keypad 4 the previous one. Directories contribute the
image files they contain, in name order.

Without arguments the stepper shows blank frames labeled with their index.`,
	Example: `  # Step through a directory of screenshots
  pixview step ~/Pictures/screenshots

  # Wrap around at the ends and label each frame
  pixview step a.png b.png c.png --wrap --label`,
	RunE: runStep,
}

var (
	stepStart  int
	stepWrap   bool
	stepLabel  bool
	stepWindow string
	stepTitle  string
)

func init() {
	rootCmd.AddCommand(stepCmd)

	stepCmd.Flags().IntVar(&stepStart, "start", 0, "index shown first")
	stepCmd.Flags().BoolVar(&stepWrap, "wrap", false, "wrap around at the first and last image")
	stepCmd.Flags().BoolVar(&stepLabel, "label", false, `draw "Index: N" on each frame`)
	stepCmd.Flags().StringVar(&stepWindow, "window", "", "window size WxH (default from config)")
	stepCmd.Flags().StringVar(&stepTitle, "title", "pixview", "window title")
}

// stepIndex maps a requested index onto [0, n), clamping or wrapping.
func stepIndex(i, n int, wrap bool) int {
	if n <= 0 {
		return 0
	}
	if wrap {
		return ((i % n) + n) % n
	}
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// imageSteps returns a step function over paths. Images that fail to
// decode are skipped and leave the current frame on screen.
func imageSteps(paths []string, wrap, label bool, log *zerolog.Logger) present.StepFunc {
	return func(i int) *present.Frame {
		j := stepIndex(i, len(paths), wrap)
		img, err := loadImage(paths[j])
		if err != nil {
			log.Warn().Err(err).Str("path", paths[j]).Msg("Failed to load image")
			return nil
		}
		if label {
			img = cloneRGBA(img)
			present.DrawLabel(img, fmt.Sprintf("Index: %d", j))
		}
		return &present.Frame{
			Pixels: img.Pix,
			Width:  img.Rect.Dx(),
			Height: img.Rect.Dy(),
			Format: "rgba",
			Index:  &j,
		}
	}
}

// blankSteps labels plain white frames with their index. Every index is
// valid.
func blankSteps(width, height int) present.StepFunc {
	return func(i int) *present.Frame {
		img := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		present.DrawLabel(img, fmt.Sprintf("Index: %d", i))
		return &present.Frame{Pixels: img.Pix, Width: width, Height: height, Format: "rgba"}
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

func runStep(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()
	log := logger.WithComponent("step")

	width, height := cfg.Window.Width, cfg.Window.Height
	if stepWindow != "" {
		w, h, err := parseSize(stepWindow)
		if err != nil {
			return err
		}
		width, height = w, h
	}

	var step present.StepFunc
	if len(args) == 0 {
		step = blankSteps(width, height)
	} else {
		paths, err := collectImages(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no images found in %v", args)
		}
		log.Info().Int("images", len(paths)).Msg("Stepping through images")
		step = imageSteps(paths, stepWrap, stepLabel, log)
	}

	opts, err := windowOptions(cfg, "")
	if err != nil {
		return err
	}

	drv, err := openBackend()
	if err != nil {
		return err
	}

	stepper, err := present.NewStepper(drv, stepTitle, width, height, stepStart, step, opts...)
	if err != nil {
		return fmt.Errorf("failed to start stepper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-stepper.Done():
		log.Info().Int("index", stepper.Index()).Msg("Window closed")
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
		return stepper.Close()
	}
	return nil
}
