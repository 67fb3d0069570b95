package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/pixview/internal/config"
	"github.com/bryanchriswhite/pixview/internal/logger"
	"github.com/bryanchriswhite/pixview/internal/surface"
	"github.com/bryanchriswhite/pixview/internal/surface/remote"
	"github.com/bryanchriswhite/pixview/internal/surface/term"
	"github.com/bryanchriswhite/pixview/internal/surface/x11"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	configMgr *config.Manager
	rootCmd   = &cobra.Command{
		Use:   "pixview",
		Short: "pixview - show pixel buffers in native windows",
		Long: `pixview opens native windows that display raw pixel buffers and
image files, and delivers keyboard, mouse and focus events back.

Backends:
  • x11     windows on the X display named by $DISPLAY
  • remote  windows streamed to a browser as MJPEG, input over websocket
  • term    the terminal, two pixels per character cell`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pixview/config.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "window backend (x11, remote, term)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty-log", false, "human readable log output")
	rootCmd.PersistentFlags().String("listen", "", "address the remote backend serves on")
}

// setup loads the configuration, lets flags override it and registers the
// backends.
func setup(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Bind flags to viper
	v := mgr.GetViper()
	flags := rootCmd.PersistentFlags()
	v.BindPFlag("backend", flags.Lookup("backend"))
	v.BindPFlag("log_level", flags.Lookup("log-level"))
	v.BindPFlag("remote.listen", flags.Lookup("listen"))
	configMgr = mgr

	cfg := mgr.Get()
	pretty, _ := flags.GetBool("pretty-log")
	logger.Init(cfg.LogLevel, pretty)
	logger.WithComponent("config").Debug().
		Str("path", mgr.GetConfigPath()).
		Str("backend", cfg.Backend).
		Msg("Configuration loaded")

	registerBackends(surface.Bindings())
	return nil
}

func registerBackends(b *surface.BindingTable) {
	x11.Register(b)
	term.Register(b)
	remote.Register(b, func() remote.Config {
		cfg := configMgr.Get()
		return remote.Config{
			Listen:      cfg.Remote.Listen,
			JPEGQuality: cfg.Remote.JPEGQuality,
		}
	})
}

// openBackend opens the configured backend.
func openBackend() (surface.Driver, error) {
	name := configMgr.Get().Backend
	drv, err := surface.Bindings().Open(name)
	if err != nil {
		return nil, err
	}
	return drv, nil
}

// Execute runs the root command and closes every opened backend.
func Execute() {
	err := rootCmd.Execute()
	if cerr := surface.Bindings().Close(); cerr != nil {
		logger.Get().Warn().Err(cerr).Msg("Failed to close backends")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
