package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/ws281x-core/ledctl/internal/animation"
	"github.com/ws281x-core/ledctl/internal/bus"
	"github.com/ws281x-core/ledctl/internal/boundary"
	"github.com/ws281x-core/ledctl/internal/color"
	"github.com/ws281x-core/ledctl/internal/config"
	"github.com/ws281x-core/ledctl/internal/engine"
	"github.com/ws281x-core/ledctl/internal/frame"
	"github.com/ws281x-core/ledctl/internal/hal"
	"github.com/ws281x-core/ledctl/internal/health"
	"github.com/ws281x-core/ledctl/internal/lifecycle"
	"github.com/ws281x-core/ledctl/internal/logger"
	"github.com/ws281x-core/ledctl/internal/metrics"
	"github.com/ws281x-core/ledctl/internal/resources"
	"github.com/ws281x-core/ledctl/internal/transition"
	"github.com/ws281x-core/ledctl/internal/zone"
)

// Version is stamped at build time via -ldflags, left at dev default
// otherwise.
var Version = "0.1.0"

const shutdownFadeDuration = 800 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ./configs/config.yaml)")
	profileName := flag.String("profile", "", "resource profile: minimal, standard, or full (default: auto-detected from board)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledctl: load config: %v\n", err)
		os.Exit(1)
	}

	if *profileName == "" {
		*profileName = string(config.DetectProfile())
	}
	profile, err := config.LoadProfile(*profileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledctl: load profile: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		LogDir:     cfg.Logger.LogDir,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   cfg.Logger.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "ledctl: init logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Sugar()
	log.Infow("starting ledctl", "version", Version, "profile", profile.Name, "board", config.DetectBoard())
	if board, err := hal.DetectBoard(); err == nil {
		log.Infow("detected gpio hardware", "model", board.Name, "gpio_chip", board.GPIOChip, "num_gpio", board.NumGPIO, "cpu_cores", board.CPUCores, "ram_mb", board.RAMSize)
	}

	eventBus := bus.New(bus.DefaultConfig(), log)
	logger.SetBus(eventBus)

	presetTable := color.NewPresetTable(presetsFromConfig(cfg))
	presetResolve := func(c color.Color) (color.RGB, error) { return color.Resolve(c, presetTable) }

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := lifecycle.WaitForPort(addr, 5*time.Second); err != nil {
		log.Fatalw("port not available", "addr", addr, "error", err)
	}

	states, err := zone.LoadSnapshot(cfg.Snapshot.Path)
	if err != nil {
		log.Fatalw("load zone snapshot", "path", cfg.Snapshot.Path, "error", err)
	}
	if len(cfg.Strips) > profile.MaxStrips {
		log.Fatalw("strip count exceeds profile limit", "configured", len(cfg.Strips), "limit", profile.MaxStrips, "profile", profile.Name)
	}
	if len(cfg.Zones) > profile.MaxZones {
		log.Fatalw("zone count exceeds profile limit", "configured", len(cfg.Zones), "limit", profile.MaxZones, "profile", profile.Name)
	}

	zoneConfigs := make([]zone.Config, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		zoneConfigs = append(zoneConfigs, z.ToZoneConfig())
	}
	zoneSvc, err := zone.NewService(zoneConfigs, states, eventBus)
	if err != nil {
		log.Fatalw("invalid zone topology", "error", err)
	}

	snapshotWriter := zone.NewSnapshotWriter(cfg.Snapshot.Path, cfg.Snapshot.DebouncePeriod(), zoneSvc.Snapshot)
	m := metrics.NewMetrics()
	zoneSvc.OnChange(func() {
		snapshotWriter.NotifyChanged()
		m.RecordZoneMutation()
	})

	if _, err := host.Init(); err != nil {
		log.Warnw("periph host init failed, SPI-backed strips unavailable", "error", err)
	}

	drivers := make(map[string]frame.Driver, len(cfg.Strips))
	stripSizes := make(map[string]int, len(cfg.Strips))
	for _, s := range cfg.Strips {
		drv, err := buildDriver(s)
		if err != nil {
			log.Fatalw("build strip driver", "strip", s.ID, "driver", s.Driver, "error", err)
		}
		drivers[s.ID] = drv
		stripSizes[s.ID] = s.PixelCount
	}

	pipeline := frame.NewPipeline(zoneSvc, stripSizes, drivers, cfg.Pipeline.TickPeriod(), presetResolve)

	var lastTickAt atomicTime
	lastTickAt.Store(time.Now())
	pipeline.OnTick(func(fps float64) {
		now := time.Now()
		jitter := now.Sub(lastTickAt.Load()) - cfg.Pipeline.TickPeriod()
		if jitter < 0 {
			jitter = -jitter
		}
		lastTickAt.Store(now)
		m.RecordFrame()
		m.RecordTick(fps, jitter)
	})

	animEngine := animation.NewEngine(pipeline.Submit, eventBus)
	transitionSvc := transition.NewService(pipeline.Submit)
	eventBus.Subscribe(bus.KindAnimationStarted, func(bus.Event) { m.RecordAnimationStarted() }, bus.ModeAsyncParallel, nil)
	eventBus.Subscribe(bus.KindAnimationStopped, func(bus.Event) { m.RecordAnimationStopped() }, bus.ModeAsyncParallel, nil)

	bnd := boundary.New(zoneSvc, animEngine, transitionSvc)
	wsHub := boundary.NewWSHub(bnd, eventBus, log)

	var mqttAdapter *boundary.MQTTAdapter
	if cfg.MQTT.Enabled && !profile.Subsystems.MQTT {
		log.Warnw("mqtt requested but not permitted by profile", "profile", profile.Name)
	} else if cfg.MQTT.Enabled {
		mqttAdapter, err = boundary.NewMQTTAdapter(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.CommandTopic, bnd, log)
		if err != nil {
			log.Errorw("mqtt adapter disabled", "error", err)
			mqttAdapter = nil
		}
	}

	var serialAdapter *boundary.SerialAdapter
	if cfg.Serial.Enabled && !profile.Subsystems.Serial {
		log.Warnw("serial requested but not permitted by profile", "profile", profile.Name)
	} else if cfg.Serial.Enabled {
		serialAdapter, err = boundary.NewSerialAdapter(cfg.Serial.Port, cfg.Serial.BaudRate, eventBus, log)
		if err != nil {
			log.Errorw("serial adapter disabled", "error", err)
			serialAdapter = nil
		}
	}

	var influxExporter *metrics.InfluxExporter
	if cfg.Metrics.Enabled && !profile.Subsystems.Metrics {
		log.Warnw("influx metrics requested but not permitted by profile", "profile", profile.Name)
	} else if cfg.Metrics.Enabled {
		influxExporter, err = metrics.NewInfluxExporter(cfg.Metrics.URL, cfg.Metrics.Token, cfg.Metrics.Org, cfg.Metrics.Bucket, func(err error) {
			log.Warnw("influx export failed", "error", err)
		})
		if err != nil {
			log.Errorw("influx exporter disabled", "error", err)
			influxExporter = nil
		}
	}

	healthChecker := health.NewHealthChecker()
	healthChecker.RegisterCheck("pipeline", health.PipelineHealthCheck(lastTickAt.Load, cfg.Pipeline.TickPeriod()), 5*time.Second)
	healthChecker.RegisterCheck("disk", health.DiskSpaceHealthCheck(func() (uint64, uint64) {
		stats := resourceMonitorStats(cfg.Snapshot.Path)
		return stats.Used, stats.Total
	}), 30*time.Second)
	healthChecker.RegisterCheck("memory", health.MemoryHealthCheck(func() (uint64, uint64) {
		m.UpdateSystemMetrics()
		return m.MemoryUsed, m.MemoryTotal
	}), 15*time.Second)
	healthChecker.RegisterCheck("goroutines", health.GoroutineHealthCheck(func() int {
		return int(m.GoroutineCount)
	}, profile.MaxGoroutines), 15*time.Second)

	resourceMonitor := resources.NewMonitor(resources.ResourceLimits{
		LowMemoryThreshold:     uint64(profile.MaxMemoryMB) * 1024 * 1024,
		AutoDisableOnLowMemory: profile.Features.AutoDisable,
	})
	resourceMonitor.SetOnLowMemory(func() {
		log.Warnw("low memory, stopping all animation runs")
		animEngine.StopAll()
	})
	resourceMonitor.SetOnDiskFull(func() {
		log.Warnw("disk nearly full, forcing snapshot flush")
		_ = snapshotWriter.Flush()
	})

	registry := lifecycle.NewRegistry()
	coordinator := lifecycle.NewCoordinator(registry, 10*time.Second)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderTaskID := registry.Start(lifecycle.CategoryRender)
	go func() {
		pipeline.Run()
		registry.Finish(renderTaskID, nil)
	}()

	if profile.Features.ResourceMonitor {
		monitorTaskID := registry.Start(lifecycle.CategoryMetrics)
		go func() {
			resourceMonitor.Start(rootCtx, 10*time.Second)
			registry.Finish(monitorTaskID, nil)
		}()
	}

	healthTaskID := registry.Start(lifecycle.CategoryMetrics)
	go func() {
		healthChecker.StartPeriodicChecks(rootCtx)
		<-rootCtx.Done()
		registry.Finish(healthTaskID, nil)
	}()

	if influxExporter != nil {
		influxTaskID := registry.Start(lifecycle.CategoryMetrics)
		go func() {
			influxExporter.Run(rootCtx, m, 15*time.Second)
			registry.Finish(influxTaskID, nil)
		}()
	}

	sched := engine.NewScheduler()
	_ = sched.AddIntervalJob("resource_sample", 30*time.Second, func() {
		resourceMonitor.Update()
	})
	_ = sched.AddIntervalJob("fps_update", time.Second, func() {
		fps := m.GetMetrics()["render"].(map[string]interface{})["fps_measured"]
		eventBus.Publish(bus.NewEvent(bus.KindFPSUpdate, bus.SourceInternal, "", map[string]interface{}{"fps": fps}))
	})
	sched.Start()

	registerShutdownHandlers(coordinator, shutdownDeps{
		mqttAdapter:    mqttAdapter,
		serialAdapter:  serialAdapter,
		animEngine:     animEngine,
		transitionSvc:  transitionSvc,
		zoneSvc:        zoneSvc,
		pipeline:       pipeline,
		drivers:        drivers,
		snapshotWriter: snapshotWriter,
		scheduler:      sched,
		presetTable:    presetTable,
	})

	app := fiber.New(fiber.Config{AppName: "ledctl v" + Version, DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(metrics.Middleware(m))
	app.Use(cors.New())

	app.Get("/ws", websocket.New(wsHub.Handle))
	app.Get("/healthz", func(c *fiber.Ctx) error {
		results := healthChecker.GetCheckResults()
		status := healthChecker.GetOverallStatus()
		code := fiber.StatusOK
		if status == health.StatusUnhealthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(results)
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
		return c.SendString(m.PrometheusFormat())
	})
	app.Get("/api/v1/zones", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"zones": zoneSvc.All()})
	})

	// Register the shutdown handler that needs the fiber app, now that
	// it exists; priority 100 always runs first regardless of
	// registration order.
	coordinator.RegisterHandler("transports", 100, 5*time.Second, func(ctx context.Context) error {
		if mqttAdapter != nil {
			mqttAdapter.Close()
		}
		if serialAdapter != nil {
			serialAdapter.Close()
		}
		return app.ShutdownWithTimeout(5 * time.Second)
	})

	listenTaskID := registry.Start(lifecycle.CategoryTransport)
	go func() {
		log.Infow("http/websocket listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Errorw("listener stopped", "error", err)
			registry.Finish(listenTaskID, err)
			return
		}
		registry.Finish(listenTaskID, nil)
	}()

	<-rootCtx.Done()
	log.Infow("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if failures := coordinator.Shutdown(shutdownCtx); len(failures) > 0 {
		for _, f := range failures {
			log.Errorw("shutdown handler failed", "handler", f.Name, "error", f.Err)
		}
	}
	if influxExporter != nil {
		influxExporter.Close()
	}
	_ = logger.Sync()
}

func presetsFromConfig(cfg *config.Config) []color.Preset {
	presets := make([]color.Preset, 0, len(cfg.Presets))
	for _, p := range cfg.Presets {
		presets = append(presets, p.ToColorPreset())
	}
	return presets
}

// buildDriver constructs the Strip Driver Abstraction backend named by
// s.Driver. "mock" needs no hardware and is the default for anything
// unrecognized, used for development without hardware attached.
func buildDriver(s config.StripConfig) (frame.Driver, error) {
	order := colorOrderFromString(s.ColorOrder)
	switch s.Driver {
	case "periph":
		port, err := spireg.Open(s.SPIPort)
		if err != nil {
			return nil, fmt.Errorf("open spi port %s: %w", s.SPIPort, err)
		}
		return hal.NewPeriphDriver(port, order)
	case "rpio":
		return newRPIODriver(s.Pin, order)
	default:
		return hal.NewMockDriver(order), nil
	}
}

func colorOrderFromString(s string) hal.ColorOrder {
	switch s {
	case "rgb":
		return hal.OrderRGB
	case "bgr":
		return hal.OrderBGR
	default:
		return hal.OrderGRB
	}
}

// resourceMonitorStats reports disk usage for the filesystem backing the
// zone snapshot, not the root filesystem, since that's what the low-disk
// reaction actually needs to protect.
func resourceMonitorStats(snapshotPath string) resources.DiskStats {
	dir := filepath.Dir(snapshotPath)
	if dir == "" {
		dir = "."
	}
	return resources.GetDiskUsage(dir)
}

type shutdownDeps struct {
	mqttAdapter    *boundary.MQTTAdapter
	serialAdapter  *boundary.SerialAdapter
	animEngine     *animation.Engine
	transitionSvc  *transition.Service
	zoneSvc        *zone.Service
	pipeline       *frame.Pipeline
	drivers        map[string]frame.Driver
	snapshotWriter *zone.SnapshotWriter
	scheduler      *engine.Scheduler
	presetTable    *color.PresetTable
}

// registerShutdownHandlers wires the teardown sequence described in the
// lifecycle coordinator's priority table: stop intake, stop producers,
// fade to black, stop the pipeline, shut strips down, flush state.
func registerShutdownHandlers(c *lifecycle.Coordinator, d shutdownDeps) {
	c.RegisterHandler("stop_producers", 90, 5*time.Second, func(ctx context.Context) error {
		d.scheduler.Stop()
		d.animEngine.StopAll()
		return nil
	})

	c.RegisterHandler("fade_out", 80, shutdownFadeDuration+500*time.Millisecond, func(ctx context.Context) error {
		for _, zc := range d.zoneSvc.All() {
			fromRGB, err := color.Resolve(zc.State.Color, d.presetTable)
			if err != nil {
				fromRGB = color.Black
			}
			d.transitionSvc.Fade(zc.Config.ID, fromRGB, color.Black, shutdownFadeDuration, frame.PriorityShutdownFade)
		}
		select {
		case <-time.After(shutdownFadeDuration):
		case <-ctx.Done():
		}
		return nil
	})

	c.RegisterHandler("stop_pipeline", 40, 2*time.Second, func(ctx context.Context) error {
		d.pipeline.Stop()
		return nil
	})

	c.RegisterHandler("shutdown_drivers", 30, 2*time.Second, func(ctx context.Context) error {
		for _, drv := range d.drivers {
			drv.Shutdown()
		}
		return nil
	})

	c.RegisterHandler("flush_snapshot", 10, 2*time.Second, func(ctx context.Context) error {
		return d.snapshotWriter.Flush()
	})
}
