//go:build govips && cgo

package pipeline

import (
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

// Startup initialises libvips once per process. cacheMB bounds the operation
// cache; zero keeps the libvips default.
func Startup(cacheMB int) error {
	startupOnce.Do(func() {
		cfg := &vips.Config{MaxCacheFiles: 0, MaxCacheSize: 100}
		if cacheMB > 0 {
			cfg.MaxCacheMem = cacheMB * 1024 * 1024
		}
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(cfg)

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

func newCodec() (ImageCodec, VectorRasterizer) {
	return govipsCodec{}, govipsRasterizer{}
}
