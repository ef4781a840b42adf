package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/ledwatch/internal/app"
	"github.com/ayusman/ledwatch/internal/calib"
	"github.com/ayusman/ledwatch/internal/capture"
	"github.com/ayusman/ledwatch/internal/config"
	"github.com/ayusman/ledwatch/internal/decision"
	"github.com/ayusman/ledwatch/internal/detector"
	"github.com/ayusman/ledwatch/internal/notify"
	"github.com/ayusman/ledwatch/internal/plugin"
	"github.com/ayusman/ledwatch/internal/server"
	"github.com/ayusman/ledwatch/internal/store"
	"github.com/ayusman/ledwatch/internal/tray"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	verdict, err := run(cfg)
	if err != nil {
		log.Fatalf("Watch failed: %v", err)
	}
	fmt.Printf("Verdict: %s\n", verdict)
}

// loadConfig reads the optional config file, then applies the flags that
// were set explicitly on the command line.
func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("ledwatch", flag.ContinueOnError)
	var (
		path      = fs.String("config", "", "JSON configuration file")
		cal       = fs.String("calibration", "", "calibration file")
		threshold = fs.Float64("threshold", 0, "detection threshold in (0,1)")
		interval  = fs.Duration("interval", 0, "time between ticks")
		noLed     = fs.Int("no-led", 0, "consecutive dark ticks before the no-led verdict")
		ending    = fs.Int("ending", 0, "consecutive ending ticks before the ending verdict")
		debug     = fs.Bool("debug", false, "write the pipeline stages of every frame")
		debugDir  = fs.String("debug-dir", "", "directory for debug images")
		source    = fs.String("source", "", "frame source: camera, still or dir")
		cameraID  = fs.Int("camera", 0, "camera device id")
		replay    = fs.String("replay", "", "directory of photos for the dir source")
		loop      = fs.Bool("loop", false, "loop over the replay directory")
		dbPath    = fs.String("db", "", "SQLite database path")
		httpAddr  = fs.String("http", "", "status API listen address")
		broker    = fs.String("mqtt", "", "MQTT broker URL")
		pluginDir = fs.String("plugins", "", "notifier plugin directory")
		withTray  = fs.Bool("tray", false, "show a system tray icon")
	)
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "calibration":
			cfg.CalibrationPath = *cal
		case "threshold":
			cfg.DetectionThreshold = *threshold
		case "interval":
			cfg.TickInterval = config.Duration(*interval)
		case "no-led":
			cfg.RequiredNoLedCount = *noLed
		case "ending":
			cfg.RequiredEndingCount = *ending
		case "debug":
			cfg.Debug = *debug
		case "debug-dir":
			cfg.DebugDir = *debugDir
		case "source":
			cfg.Source = *source
		case "camera":
			cfg.CameraID = *cameraID
		case "replay":
			cfg.ReplayDir = *replay
		case "loop":
			cfg.ReplayLoop = *loop
		case "db":
			cfg.DBPath = *dbPath
		case "http":
			cfg.HTTPAddr = *httpAddr
		case "mqtt":
			cfg.MQTT.Broker = *broker
		case "plugins":
			cfg.PluginDir = *pluginDir
		case "tray":
			cfg.Tray = *withTray
		}
	})

	return cfg, cfg.Validate()
}

func run(cfg config.Config) (decision.Verdict, error) {
	cal, err := calib.Load(cfg.CalibrationPath)
	if err != nil {
		return decision.Running, err
	}
	printBanner(cfg, cal)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug, snapshots, err := debugSinks(cfg)
	if err != nil {
		return decision.Running, err
	}

	det, err := detector.New(cal, detector.Config{
		Threshold: cfg.DetectionThreshold,
		Debug:     debug,
	})
	if err != nil {
		return decision.Running, err
	}
	defer det.Close()

	wcfg := app.Config{
		Camera:      newSource(cfg),
		Detector:    det,
		Calibration: cal,
		Thresholds:  decision.Thresholds{NoLed: cfg.RequiredNoLedCount, Ending: cfg.RequiredEndingCount},
		Interval:    cfg.Interval(),
	}

	sinks := notify.Multi{notify.LogSink{}}

	var st *store.Store
	if cfg.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return decision.Running, fmt.Errorf("failed to create data directory: %w", err)
		}
		st, err = store.New(cfg.DBPath)
		if err != nil {
			return decision.Running, fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()

		rec, err := st.NewRecorder(&store.Run{
			Source:         cfg.Source,
			Calibration:    cfg.CalibrationPath,
			EndingIndex:    cal.EndingIndex,
			RequiredNoLed:  cfg.RequiredNoLedCount,
			RequiredEnding: cfg.RequiredEndingCount,
			Interval:       cfg.Interval(),
		})
		if err != nil {
			return decision.Running, err
		}
		wcfg.Recorder = rec
	}

	if cfg.MQTT.Broker != "" {
		client, err := notify.Connect(notify.MQTTOptions{Broker: cfg.MQTT.Broker, ClientID: cfg.MQTT.ClientID})
		if err != nil {
			return decision.Running, err
		}
		defer client.Disconnect(250)

		mq := &notify.MQTTSink{
			Client:       client,
			Topic:        cfg.MQTT.Topic,
			QoS:          cfg.MQTT.QoS,
			PublishTicks: cfg.MQTT.PublishTicks,
		}
		sinks = append(sinks, mq)
		wcfg.Observers = append(wcfg.Observers, mq)
		log.Printf("Publishing verdicts to %s on %s", cfg.MQTT.Topic, cfg.MQTT.Broker)
	}

	if cfg.PluginDir != "" {
		timeout := time.Duration(cfg.PluginTimeout)
		ps, err := notify.NewPluginSink(cfg.PluginDir, int(timeout.Milliseconds()), cfg.Plugins)
		if err != nil {
			return decision.Running, err
		}
		for _, p := range ps.Manager.ForAction(plugin.ActionCycleEnded) {
			log.Printf("Notifier plugin: %s %s", p.Manifest.Name, p.Manifest.Version)
		}
		sinks = append(sinks, ps)
	}
	wcfg.Sink = sinks

	var srv *server.Server
	if cfg.HTTPAddr != "" {
		status := server.NewStatusTracker()
		hub := server.NewTickHub()
		wcfg.Observers = append(wcfg.Observers, status, hub)

		srv = server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Status:    status,
			Ticks:     hub,
			Snapshots: snapshots,
		})
		go func() {
			log.Printf("Starting server on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(cfg.HTTPAddr); err != nil {
				log.Printf("Server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server shutdown: %v", err)
			}
		}()
	}

	watcher := app.New(wcfg)

	if !cfg.Tray {
		return watcher.Run(ctx)
	}

	// systray needs the main goroutine, so the watch runs beside it.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := tray.New()
	t.OnStop(cancel)
	t.OnQuit(cancel)
	if cfg.HTTPAddr != "" {
		t.OnStatus(func() { openBrowser(statusURL(cfg.HTTPAddr)) })
	}
	watcher.AddObserver(t)

	type result struct {
		verdict decision.Verdict
		err     error
	}
	done := make(chan result, 1)
	go func() {
		v, err := watcher.Run(runCtx)
		done <- result{v, err}
		t.Quit()
	}()

	t.Run()
	cancel()
	res := <-done
	if errors.Is(res.err, context.Canceled) && t.IsStopped() {
		log.Println("Watch stopped from the tray")
		return res.verdict, nil
	}
	return res.verdict, res.err
}

// debugSinks returns the sinks for intermediate pipeline images. Snapshots
// are kept only when the status API can serve them. The sink is nil when
// nothing consumes the stages.
func debugSinks(cfg config.Config) (detector.DebugSink, *server.SnapshotSink, error) {
	var (
		sinks     detector.MultiSink
		snapshots *server.SnapshotSink
	)
	if cfg.HTTPAddr != "" {
		snapshots = server.NewSnapshotSink()
		sinks = append(sinks, snapshots)
	}
	if cfg.Debug {
		dirSink, err := detector.NewDirSink(cfg.DebugDir, "frame")
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, dirSink)
	}
	if len(sinks) == 0 {
		return nil, nil, nil
	}
	return sinks, snapshots, nil
}

// newSource builds the configured frame source.
func newSource(cfg config.Config) capture.Camera {
	switch cfg.Source {
	case config.SourceCamera:
		return capture.NewCamera(cfg.CameraID, cfg.CameraWidth, cfg.CameraHeight)
	case config.SourceDir:
		return capture.NewDirCamera(cfg.ReplayDir, cfg.ReplayLoop)
	default:
		return capture.NewStillCamera(cfg.StillCommand, cfg.StillPath)
	}
}

func printBanner(cfg config.Config, cal *calib.Calibration) {
	fmt.Println("ledwatch - LED panel watcher")
	fmt.Printf("gocv %s, OpenCV %s\n", gocv.Version(), gocv.OpenCVVersion())
	fmt.Printf("LED radius: %d\n", cal.LEDRadius)
	fmt.Printf("Number of LEDs: %d\n", cal.NumLEDs())
	fmt.Printf("Ending LED index: %d\n", cal.EndingIndex)
	fmt.Printf("LED coordinates (ROI relative): %v\n", cal.RelativeLEDs())
	fmt.Printf("ROI: x %d..%d, y %d..%d\n", cal.ROI.XMin, cal.ROI.XMax, cal.ROI.YMin, cal.ROI.YMax)
	fmt.Printf("Source: %s, tick every %s, verdict after %d dark / %d ending ticks\n",
		cfg.Source, cfg.Interval(), cfg.RequiredNoLedCount, cfg.RequiredEndingCount)
}

func statusURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/status"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.ledwatch/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".ledwatch", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
