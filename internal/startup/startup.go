package startup

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"image-editor/internal/logging"
	"image-editor/internal/memory"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// section starts a titled block in the startup log.
func section(title string) {
	logging.Info("")
	logging.Info(rule)
	logging.Info("%s", title)
	logging.Info(rule)
}

const rule = "------------------------------------------------------------"

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE")
	logging.Info("  [OK] Schema ready in %v", duration)
}

// LogMemoryConfig logs the runtime memory limit and the decode budget
// derived from it.
func LogMemoryConfig(result memory.ConfigResult, budget memory.Budget) {
	section("MEMORY")
	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT:      %s", memory.FormatBytes(result.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  Container limit: %s", memory.FormatBytes(result.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%%)", memory.FormatBytes(result.GoMemLimit), result.Ratio*100)
	default:
		logging.Info("  Runtime limit:   not set")
	}
	logging.Info("  Decode budget:   %s (%s)", memory.FormatBytes(budget.Ceiling), budget.Source)
}

// LogImageBackendInit logs which image library handles previews.
func LogImageBackendInit(name string, err error) {
	section("IMAGE BACKEND")
	if err != nil {
		logging.Warn("  %s unavailable: %v", name, err)
		logging.Warn("  Falling back to the pure Go backend")
		return
	}
	logging.Info("  [OK] Using %s", name)
}

// LogRateLimitInit logs the counter store and policies.
func LogRateLimitInit(store string, previewLimit, saveLimit int64, window time.Duration) {
	section("RATE LIMITING")
	logging.Info("  Store:   %s", store)
	logging.Info("  Preview: %d requests per %v", previewLimit, window)
	logging.Info("  Save:    %d requests per %v", saveLimit, window)
}

// GetRoutes lists every method/path pair registered on router. Routes
// without a method matcher are reported with method "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes logs the request logging switches and, at debug level, the
// route table grouped by its leading path segments.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP ROUTES")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("  Could not walk routes: %v", err)
		}

		byGroup := make(map[string][]string)
		for _, r := range routes {
			g := getRouteGroup(r.Path)
			byGroup[g] = append(byGroup[g], fmt.Sprintf("%-6s %s", r.Method, r.Path))
		}
		groups := make([]string, 0, len(byGroup))
		for g := range byGroup {
			groups = append(groups, g)
		}
		sort.Strings(groups)

		logging.Debug("  %d routes:", len(routes))
		for _, g := range groups {
			label := g
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, line := range byGroup[g] {
				logging.Debug("    %s", line)
			}
		}
	}

	logging.Info("  Access log for /uploads/: %s", onOff(logStaticFiles, "LOG_STATIC_FILES"))
	logging.Info("  Access log for probes:    %s", onOff(logHealthChecks, "LOG_HEALTH_CHECKS"))
}

func onOff(enabled bool, key string) string {
	if enabled {
		return "on"
	}
	return "off (set " + key + "=true to enable)"
}

// getRouteGroup returns the first path segment, or "api/<resource>" for
// API routes.
func getRouteGroup(path string) string {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if parts[0] == "api" && len(parts) > 1 {
		return "api/" + parts[1]
	}
	return parts[0]
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs the listening addresses once both servers are up.
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time: %v", config.StartupDuration)
	logging.Info("  Editor API:   http://0.0.0.0:%s/api/editor", config.Port)
	logging.Info("  Uploads:      http://0.0.0.0:%s/uploads/", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:      http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("  Metrics:      disabled")
	}
	logging.Info(rule)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(reason string) {
	section("SHUTDOWN (" + reason + ")")
}

// ShutdownStep runs one shutdown action and logs its outcome. A failing
// step is logged and does not stop the ones after it.
func ShutdownStep(name string, fn func() error) {
	logging.Debug("  %s...", name)
	if err := fn(); err != nil {
		logging.Error("  [FAIL] %s: %v", name, err)
		return
	}
	logging.Info("  [OK] %s", name)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
   ___                            _____    _ _ _
  |_ _|_ __ ___   __ _  __ _  ___| ____|__| (_) |_ ___  _ __
   | || '_ ' _ \ / _' |/ _' |/ _ \  _| / _' | | __/ _ \| '__|
   | || | | | | | (_| | (_| |  __/ |__| (_| | | || (_) | |
  |___|_| |_| |_|\__,_|\__, |\___|_____\__,_|_|\__\___/|_|
                       |___/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  %s (commit %s, built %s)", Version, Commit, BuildTime)
	logging.Info("  Go %s on %s/%s, %d CPUs, GOMAXPROCS %d",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.GOMAXPROCS(0))
	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir: %s", wd)
		}
		if host, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:    %s", host)
		}
	}
}

// prepareDirectory creates path if needed and confirms the process can
// create files in it.
func prepareDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	probe, err := os.CreateTemp(path, ".write-test-*")
	if err != nil {
		return fmt.Errorf("directory is not writable: %w", err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write probe %s: %v", name, err)
	}
	return nil
}
