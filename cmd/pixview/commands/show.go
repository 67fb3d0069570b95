package commands

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bryanchriswhite/pixview/internal/config"
	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/present"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show FILE",
	Short: "Show an image or raw pixel file until the window is closed",
	Long: `Open a window displaying FILE. PNG, JPEG, GIF, BMP, TIFF and WebP files
are decoded; with --raw the file is read as headerless pixels.`,
	Example: `  # Show a PNG in an X11 window
  pixview show photo.png

  # Show raw 640x480 RGB pixels in the terminal
  pixview show frame.raw --raw 640x480 --format rgb --backend term

  # Stream to a browser on port 9090
  pixview show photo.png --backend remote --listen :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

var (
	showRaw    string
	showFormat string
	showTitle  string
	showWindow string
)

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().StringVar(&showRaw, "raw", "", "read FILE as raw pixels of size WxH")
	showCmd.Flags().StringVar(&showFormat, "format", "rgba", "raw pixel format (rgb, rgba, bgra)")
	showCmd.Flags().StringVar(&showTitle, "title", "", "window title (default is the file name)")
	showCmd.Flags().StringVar(&showWindow, "window", "", "window size WxH (default is the image size)")
}

// windowOptions returns the present options shared by show and step.
func windowOptions(cfg *config.Config, size string) ([]present.Option, error) {
	c := cfg.Window.ClearColor
	opts := []present.Option{
		present.WithClearColor(color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}),
		present.WithTickInterval(cfg.Window.TickInterval()),
	}
	if size != "" {
		w, h, err := parseSize(size)
		if err != nil {
			return nil, err
		}
		opts = append(opts, present.WithBounds(w, h))
	}
	return opts, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg := configMgr.Get()
	log := logger.WithComponent("show")

	var (
		buf           []byte
		width, height int
		format        = "rgba"
	)
	if showRaw != "" {
		var err error
		buf, width, height, err = loadRaw(path, showRaw, showFormat)
		if err != nil {
			return err
		}
		format = showFormat
	} else {
		img, err := loadImage(path)
		if err != nil {
			return err
		}
		buf, width, height = img.Pix, img.Rect.Dx(), img.Rect.Dy()
	}

	title := showTitle
	if title == "" {
		title = filepath.Base(path)
	}

	opts, err := windowOptions(cfg, showWindow)
	if err != nil {
		return err
	}

	drv, err := openBackend()
	if err != nil {
		return err
	}

	closed, session, err := present.Show(drv, title, buf, width, height, format, opts...)
	if err != nil {
		return fmt.Errorf("failed to show %s: %w", path, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-closed:
		log.Info().Msg("Window closed")
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
		return session.Close()
	}
	return nil
}
