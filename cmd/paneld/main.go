package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/panel-labs/paneld/internal/adapters/fbsim"
	"github.com/panel-labs/paneld/internal/adapters/serial"
	"github.com/panel-labs/paneld/internal/adapters/st7735"
	"github.com/panel-labs/paneld/internal/app"
	"github.com/panel-labs/paneld/internal/cliconfig"
	"github.com/panel-labs/paneld/internal/panel"
	"github.com/panel-labs/paneld/internal/ports"
	"github.com/panel-labs/paneld/internal/protocol"
	"github.com/panel-labs/paneld/internal/watcher"
)

const helpDescription = `
Serve bitmap transfers to ST7735-class LCD panels over a serial link.

Highlights:
  - Centers incoming RGB565 bitmaps on each panel's calibrated usable area.
  - Live edge calibration over the CMD: channel, committed in memory.
  - Panels, pinout and calibration come from a TOML config file.
  - --simulate runs the full protocol against in-memory framebuffers.
`

var exampleUsage = strings.TrimSpace(`
  paneld --config /etc/paneld/config.toml --device /dev/ttyACM0
  paneld --config ./config.toml --stdio --simulate
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "paneld",
		Short:   "Serial bitmap server for ST7735 LCD panels",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Flags win over env, env wins over file.
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				cfg.ConfigPath = cfgFile
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log = cliconfig.LoggerWithLevel(cfg.LogLevel)
			log.Info().
				Str("device", cfg.Device).
				Int("baud", cfg.Baud).
				Bool("stdio", cfg.Stdio).
				Bool("simulate", cfg.Simulate).
				Int("panels", len(cfg.Panels)).
				Msg("configuration")

			return run(cfg, log)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.paneld/config.toml)")
	root.Flags().StringVar(&cfg.Device, "device", cfg.Device, "serial device for the transfer link")
	root.Flags().IntVar(&cfg.Baud, "baud", cfg.Baud, "serial link baud rate")
	root.Flags().BoolVar(&cfg.Stdio, "stdio", cfg.Stdio, "serve the protocol on stdin/stdout instead of a serial device")
	root.Flags().BoolVar(&cfg.Simulate, "simulate", cfg.Simulate, "back panels with in-memory framebuffers (no SPI hardware)")
	root.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "transfer inactivity timeout")
	root.Flags().BoolVar(&cfg.Watch, "watch", cfg.Watch, "re-apply calibration when the config file changes")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("paneld")
		os.Exit(1)
	}
}

func run(cfg cliconfig.Config, log zerolog.Logger) error {
	reg := panel.NewRegistry(log)
	defer reg.Close()

	for _, pc := range cfg.Panels {
		drv, err := openDriver(cfg, pc)
		if err != nil {
			return fmt.Errorf("panel %s: %w", pc.Name, err)
		}
		if err := reg.Add(panel.New(pc.Geometry(), drv, log)); err != nil {
			return fmt.Errorf("panel %s: %w", pc.Name, err)
		}
	}

	if !reg.InitAll() {
		log.Warn().Msg("one or more panels failed to initialize")
	}
	reg.ShowAllTestPatterns()

	var in io.Reader
	var out io.Writer
	if cfg.Stdio {
		in, out = os.Stdin, os.Stdout
	} else {
		port, err := serial.Open(cfg.Device, cfg.Baud)
		if err != nil {
			return err
		}
		defer port.Close()
		in, out = port, port
	}

	printBanner(out, reg)

	protoCfg := protocol.DefaultConfig()
	protoCfg.Timeout = cfg.Timeout
	sess := protocol.New(reg, out, log, protoCfg)
	loop := app.NewLoop(in, sess, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watch && cfg.ConfigPath != "" {
		w := watcher.New(cfg.ConfigPath, reg, log, loop.Invoke)
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warn().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	err := loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("received signal, stopping...")
		return nil
	}
	return err
}

// printBanner announces the daemon and its panels on the link, mirroring the
// firmware's boot chatter so existing sender tools find a familiar prompt.
func printBanner(out io.Writer, reg *panel.Registry) {
	fmt.Fprintf(out, "paneld %s\r\n", getVersion())
	fmt.Fprintf(out, "Panels:%d\r\n", reg.Len())
	reg.List(out)
	fmt.Fprintf(out, "Ready for next bitmap\r\n")
}

// openDriver builds the panel driver: an in-memory framebuffer under
// --simulate, SPI hardware otherwise.
func openDriver(cfg cliconfig.Config, pc cliconfig.Panel) (ports.PanelDriver, error) {
	if cfg.Simulate {
		return fbsim.New(pc.Width, pc.Height), nil
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(pc.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("spi open %q: %w", pc.SPIPort, err)
	}

	dc := gpioreg.ByName(pc.PinDC)
	if dc == nil {
		port.Close()
		return nil, fmt.Errorf("dc pin %q not found", pc.PinDC)
	}

	opts := &st7735.Opts{
		W:        pc.Width,
		H:        pc.Height,
		Rotation: pc.Geometry().Rotation,
	}
	if pc.PinRST != "" {
		if opts.RST = gpioreg.ByName(pc.PinRST); opts.RST == nil {
			port.Close()
			return nil, fmt.Errorf("rst pin %q not found", pc.PinRST)
		}
	}
	if pc.PinBL != "" {
		var bl gpio.PinIO
		if bl = gpioreg.ByName(pc.PinBL); bl == nil {
			port.Close()
			return nil, fmt.Errorf("backlight pin %q not found", pc.PinBL)
		}
		opts.BL = bl
	}

	dev, err := st7735.NewSPI(port, dc, opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	return dev, nil
}
