package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/app"
	"github.com/ayusman/madhubani/internal/capture"
	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/logger"
	"github.com/ayusman/madhubani/internal/server"
	"github.com/ayusman/madhubani/internal/store"
	"github.com/ayusman/madhubani/internal/tray"
)

type options struct {
	addr       string
	camera     int
	fps        int
	preset     string
	tuning     string
	profile    string
	debug      bool
	headless   bool
	fixedRate  bool
	noMirror   bool
	saveCanvas bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("madhubani", flag.ContinueOnError)
	fs.StringVar(&o.addr, "addr", ":8080", "HTTP listen address")
	fs.IntVar(&o.camera, "camera", 0, "camera device id")
	fs.IntVar(&o.fps, "fps", capture.ActiveFPS, "capture rate when -fixed-rate is set")
	fs.StringVar(&o.preset, "preset", "", "tuning preset: default, responsive or strict")
	fs.StringVar(&o.tuning, "tuning", "", "tuning JSON file (default <home>/tuning.json if present)")
	fs.StringVar(&o.profile, "profile", app.DefaultProfileName, "profile name calibrations are saved under")
	fs.BoolVar(&o.debug, "debug", false, "debug logging")
	fs.BoolVar(&o.headless, "headless", false, "run without the system tray")
	fs.BoolVar(&o.fixedRate, "fixed-rate", false, "capture at -fps regardless of activity")
	fs.BoolVar(&o.noMirror, "no-mirror", false, "do not mirror camera frames")
	fs.BoolVar(&o.saveCanvas, "save-canvas", true, "save the canvas to <home>/canvas.png on exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		color.Red("madhubani: %v", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	color.Cyan("Madhubani - gesture drawing")

	paths, err := config.DefaultPaths()
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Options{
		File:    paths.Log,
		Console: true,
		Debug:   opts.debug,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer closeLog()

	st, err := store.New(paths.DB)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tuning, err := loadTuning(opts, paths, st, log)
	if err != nil {
		return err
	}

	cam := capture.DefaultOptions()
	cam.DeviceID = opts.camera
	cam.Mirror = !opts.noMirror
	if opts.fixedRate {
		cam.FPS = opts.fps
	}

	a, err := app.New(app.Config{
		Store:     st,
		Tuning:    tuning,
		Camera:    cam,
		Profile:   opts.profile,
		FixedRate: opts.fixedRate,
		Log:       log,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer func() {
		if opts.saveCanvas {
			out := filepath.Join(paths.Home, "canvas.png")
			if err := a.Canvas().SavePNG(out); err != nil {
				log.Warn("save canvas", zap.Error(err))
			} else {
				log.Info("canvas saved", zap.String("path", out))
			}
		}
		if err := a.Close(); err != nil {
			log.Warn("close app", zap.Error(err))
		}
	}()

	if p, err := a.RestoreActiveProfile(); err == nil {
		color.Green("Restored calibration profile %q", p.Name)
	} else if errors.Is(err, store.ErrNotFound) {
		color.Yellow("No calibration profile yet; hold a neutral face and start calibration")
	} else {
		log.Warn("restore profile", zap.Error(err))
	}

	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		color.Yellow("Camera unavailable: %v", err)
		log.Warn("pipeline not started", zap.Error(err))
	}

	srv := server.New(server.Config{
		StaticDir: paths.Web,
		Store:     st,
		App:       a,
		LogFile:   paths.Log,
		Log:       log,
	})
	if paths.Web != "" {
		fmt.Printf("Serving static files from: %s\n", paths.Web)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		color.Green("Listening on %s", opts.addr)
		if err := srv.ListenAndServe(opts.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if opts.headless {
		select {
		case <-ctx.Done():
		case err = <-errCh:
		}
	} else {
		err = runTray(ctx, errCh, a, opts.addr, log)
	}

	if shutdownErr := srv.Shutdown(5 * time.Second); shutdownErr != nil {
		log.Warn("shutdown server", zap.Error(shutdownErr))
	}
	log.Info("exiting")
	return err
}

// loadTuning layers the preset, the tuning file and the override saved
// through the API, in that order.
func loadTuning(opts options, paths config.Paths, st *store.Store, log *zap.Logger) (config.Tuning, error) {
	preset := opts.preset
	if preset == "" {
		if saved, err := st.Settings().Get(store.SettingPreset); err == nil {
			preset = saved
		}
	}
	tuning, err := config.Preset(preset)
	if err != nil {
		return config.Tuning{}, err
	}

	file := opts.tuning
	if file == "" {
		if _, err := os.Stat(paths.Tuning); err == nil {
			file = paths.Tuning
		}
	}
	if file != "" {
		if tuning, err = config.LoadTuningOver(tuning, file); err != nil {
			return config.Tuning{}, err
		}
		log.Info("tuning file loaded", zap.String("path", file))
	}

	saved, err := st.Settings().Get(store.SettingTuning)
	switch {
	case err == nil:
		if err := tuning.Merge([]byte(saved)); err != nil {
			return config.Tuning{}, fmt.Errorf("saved tuning: %w", err)
		}
		log.Info("saved tuning override applied")
	case !errors.Is(err, store.ErrNotFound):
		return config.Tuning{}, err
	}

	if err := tuning.Validate(); err != nil {
		return config.Tuning{}, err
	}
	return tuning, nil
}

// runTray blocks in the tray loop until Quit, a signal or a server error.
func runTray(ctx context.Context, errCh <-chan error, a *app.App, addr string, log *zap.Logger) error {
	t := tray.New(log)
	t.SetEnabled(a.IsEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnRecalibrate(func() { a.BeginCalibration() })
	t.OnSettings(func() { openBrowser(settingsURL(addr), log) })

	if sub := a.Dispatcher().Subscribe(16); sub != nil {
		go t.Follow(sub.C)
	}

	done := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				t.Quit()
				return
			case err := <-errCh:
				result <- err
				t.Quit()
				return
			case <-ticker.C:
				t.SetStatus(a.CalibrationStatus())
			}
		}
	}()

	t.Run()
	close(done)

	select {
	case err := <-result:
		return err
	default:
		return nil
	}
}

func settingsURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/"
}

func openBrowser(url string, log *zap.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("open browser", zap.String("url", url), zap.Error(err))
	}
}
