package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long the file must stay quiet before it is reloaded.
// Editors and os.WriteFile truncate before writing, so the first event
// usually sees an empty or partial file.
var reloadDebounce = 100 * time.Millisecond

// Watch monitors path and calls onChange with the newly loaded Config each
// time the file is written or replaced. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// atomic saves (write temp file, rename over the original) keep being seen
// after the original inode disappears.
//
// Bursts of events are coalesced: the file is read once it has been quiet
// for reloadDebounce. An empty file is skipped. If a reload fails (e.g.
// invalid YAML), the error is logged and onChange is not called; the caller
// keeps its previous config.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: new watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(target), err)
	}

	slog.Info("config: watching for changes", "path", target)

	reload := make(chan struct{}, 1)
	debounce := time.AfterFunc(time.Hour, func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	})
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounce.Reset(reloadDebounce)

		case <-reload:
			if fi, err := os.Stat(target); err == nil && fi.Size() == 0 {
				slog.Debug("config: file is empty, waiting for content", "path", target)
				continue
			}
			cfg, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config",
					"path", target, "err", err)
				continue
			}

			slog.Info("config: reloaded", "path", target)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// RestartRequired lists the fields that differ between old and updated and
// only take effect after a restart. log_level is applied live and is never
// listed.
func RestartRequired(old, updated AgentConfig) (restartRequired []string) {
	if old.VehicleID != updated.VehicleID {
		restartRequired = append(restartRequired, "vehicle_id")
	}
	if old.ServerEndpoint != updated.ServerEndpoint {
		restartRequired = append(restartRequired, "server_endpoint")
	}
	if old.Mode != updated.Mode {
		restartRequired = append(restartRequired, "mode")
	}
	if old.RateHz != updated.RateHz {
		restartRequired = append(restartRequired, "rate_hz")
	}
	if old.QueueCapacity != updated.QueueCapacity {
		restartRequired = append(restartRequired, "queue_capacity")
	}
	if old.LidarPoints != updated.LidarPoints {
		restartRequired = append(restartRequired, "lidar_points")
	}
	if old.MetricsAddr != updated.MetricsAddr {
		restartRequired = append(restartRequired, "metrics_addr")
	}
	if old.ServerAuth != updated.ServerAuth {
		restartRequired = append(restartRequired, "server_auth")
	}
	return restartRequired
}
