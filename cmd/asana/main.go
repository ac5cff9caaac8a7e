package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/app"
	"github.com/ayusman/asana/internal/capture"
	"github.com/ayusman/asana/internal/config"
	"github.com/ayusman/asana/internal/detector"
	"github.com/ayusman/asana/internal/metrics"
	"github.com/ayusman/asana/internal/rules"
	"github.com/ayusman/asana/internal/server"
	"github.com/ayusman/asana/internal/server/api"
	"github.com/ayusman/asana/internal/store"
	"github.com/ayusman/asana/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(".env")
	log := cfg.NewLogger()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Asana exited")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	log.Info("Asana - pose hold coach")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if n, err := st.Sessions().AbandonActive(); err != nil {
		log.WithError(err).Warn("Failed to close stale sessions")
	} else if n > 0 {
		log.WithField("sessions", n).Info("Marked stale sessions abandoned")
	}

	m := metrics.New()
	registry := rules.NewRegistry(log)
	registry.Subscribe(func(u rules.Update) {
		result := "unchanged"
		switch {
		case len(u.Rejected) > 0:
			result = "rejected"
		case u.Changed:
			result = "changed"
		}
		m.RecordRuleUpdate(u.Pose, u.Source, result)
	})

	storeSource := rules.NewStoreSource(st.Rules(), registry, cfg.RulesPoll, log)

	var publisher api.RulePublisher
	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()

		redisSource := rules.NewRedisSource(client, registry, log)
		publisher = redisSource
		storeSource.Layer(redisSource)
		go func() {
			if err := redisSource.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Redis rule watcher stopped")
			}
		}()
		log.WithField("addr", cfg.RedisAddr).Info("Watching redis for rule updates")
	}

	// Redis fields are reapplied over stored documents.
	if err := storeSource.Sync(ctx); err != nil {
		log.WithError(err).Warn("Failed to load stored rules; using defaults")
	}
	go storeSource.Run(ctx)

	camera := capture.NewCameraWithConfig(capture.CameraConfig{
		DeviceID: cfg.CameraID,
		FPS:      capture.FPSForInterval(cfg.SampleInterval),
	})

	// Try MediaPipe first, fall back to the mock detector.
	var det detector.Detector
	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
		det = mp
		log.Info("Using MediaPipe pose detection")
	} else {
		log.WithError(err).Warn("MediaPipe not available, using mock detector")
		det = detector.NewMockDetector()
	}
	defer det.Close()

	a := app.New(app.Config{
		Store:          st,
		Registry:       registry,
		Source:         app.NewCameraSource(camera, det),
		Metrics:        m,
		Logger:         log,
		SampleInterval: cfg.SampleInterval,
		WindowSize:     cfg.WindowSize,
		DefaultPose:    cfg.DefaultPose,
	})
	appDone := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(appDone)
	}()

	webDir := findWebDir(cfg.DataDir)
	if webDir != "" {
		log.WithField("dir", webDir).Info("Serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		Registry:  registry,
		Publisher: publisher,
		App:       a,
		Camera:    camera,
		Metrics:   m,
		Logger:    log,
	})
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.ListenAndServe(cfg.Addr)
	}()

	if cfg.Tray {
		runTray(ctx, stop, a, dashboardURL(cfg.Addr), log)
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-srvErr:
		if err != nil {
			stop()
			<-appDone
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
	stop()
	<-appDone
	return nil
}

// runTray blocks on the tray loop until Quit or ctx ends.
func runTray(ctx context.Context, quit func(), a *app.App, url string, log *logrus.Logger) {
	t := tray.New()
	t.Update(a.Current())
	unsubscribe := a.Subscribe(t.Update)
	defer unsubscribe()

	t.OnRestart(func() {
		if _, err := a.Start(ctx, ""); err != nil {
			log.WithError(err).Warn("Restart failed")
		}
	})
	t.OnDashboard(func() {
		if err := openBrowser(url); err != nil {
			log.WithError(err).Warn("Failed to open dashboard")
		}
	})
	t.OnQuit(quit)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func dashboardURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations: "web",
// "../web", "../../web" and <dataDir>/web. Returns "" if none exists.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
