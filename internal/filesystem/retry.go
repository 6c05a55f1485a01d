package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"image-editor/internal/logging"
)

// VolumeResolver maps paths to volume labels by longest prefix.
type VolumeResolver struct {
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute, with trailing slash
	name string
}

// NewVolumeResolver builds a resolver from volume name to directory.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if !strings.HasSuffix(abs, "/") {
			abs += "/"
		}
		mounts = append(mounts, volumeMount{path: abs, name: name})
	}

	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].path) > len(mounts[j].path)
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume label for path, or "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	for _, m := range vr.mounts {
		if strings.HasPrefix(abs+"/", m.path) {
			return m.name
		}
	}
	return "unknown"
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the resolver used when a RetryConfig has none.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns the NFS retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

func isNFSStaleError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// retry runs fn until it succeeds, fails with a non-ESTALE error, or the
// retry budget is spent.
func retry(op, path string, config RetryConfig, fn func() error) error {
	start := time.Now()
	volume := config.resolveVolume(path)
	obs := observe()
	defer func() {
		obs.ObserveRetryDuration(op, volume, time.Since(start).Seconds())
	}()

	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", op, attempt, path)
				obs.ObserveRetrySuccess(op, volume)
			}
			return nil
		}

		lastErr = err
		if !isNFSStaleError(err) {
			return err
		}

		obs.ObserveStaleError(op, volume)

		if attempt < config.MaxRetries {
			obs.ObserveRetryAttempt(op, volume)
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	obs.ObserveRetryFailure(op, volume)
	return lastErr
}

// StatWithRetry performs os.Stat, retrying stale file handles.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := retry("stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// OpenWithRetry performs os.Open, retrying stale file handles.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	var f *os.File
	err := retry("open", path, config, func() error {
		var err error
		f, err = os.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// RemoveWithRetry performs os.Remove, retrying stale file handles. A missing
// file is not an error.
func RemoveWithRetry(path string, config RetryConfig) error {
	err := retry("remove", path, config, func() error {
		return os.Remove(path)
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
