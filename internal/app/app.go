// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/Corphon/ScriptBreakdown/internal/api"
	"github.com/Corphon/ScriptBreakdown/internal/config"
	"github.com/Corphon/ScriptBreakdown/internal/di"
	"github.com/Corphon/ScriptBreakdown/internal/remote"
	"github.com/Corphon/ScriptBreakdown/internal/storage"
	"github.com/Corphon/ScriptBreakdown/internal/store"
	"github.com/Corphon/ScriptBreakdown/internal/utils"
)

const (
	shutdownTimeout = 30 * time.Second
	metricsInterval = 5 * time.Minute
)

// Server is the part of *http.Server the app drives
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App is the server process: config, router and services
type App struct {
	config   *config.AppConfig
	router   http.Handler
	server   Server
	stopChan chan os.Signal

	state       storage.StateStore
	store       *store.Store
	cancelWatch context.CancelFunc // stops the state watcher and metrics logging
	cleanupOnce sync.Once
}

var (
	instance   *App
	instanceMu sync.Mutex
)

// GetApp returns the process-wide App
func GetApp() *App {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	}
	return instance
}

// Initialize loads the configuration stored in dataDir, then builds the
// services and the router.
func Initialize(dataDir string) error {
	if err := config.InitConfig(dataDir); err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}

	a := GetApp()
	a.config = config.GetCurrentConfig()

	if err := initLogger(a.config.LogDir); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	if a.config.DebugMode {
		utils.GetLogger().SetLogLevel(utils.DEBUG)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	a.router = router
	return nil
}

// initLogger writes logs to a dated file under logDir
func initLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return err
	}
	logFile := filepath.Join(logDir, fmt.Sprintf("app_%s.log", time.Now().Format("2006-01-02")))
	return utils.InitLogger(logFile)
}

// InitServices opens the durable state, builds the remote client and the
// store, and registers them in the container.
func InitServices() error {
	a := GetApp()
	if a.config == nil {
		a.config = config.GetCurrentConfig()
	}
	cfg := a.config

	container := di.GetContainer()
	logger := utils.GetLogger()
	metrics := utils.NewAPIMetrics()

	state, err := OpenState(cfg)
	if err != nil {
		return err
	}

	client := remote.New(remote.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Metrics: metrics,
		Logger:  logger,
	})
	s := store.New(store.Options{
		State:    state,
		Client:   client,
		Logger:   logger,
		Metrics:  metrics,
		Currency: cfg.CurrencyPrefix,
	})

	container.Register(di.ServiceConfig, cfg)
	container.Register(di.ServiceLogger, logger)
	container.Register(di.ServiceMetrics, metrics)
	container.Register(di.ServiceState, state)
	container.Register(di.ServiceRemote, client)
	container.Register(di.ServiceStore, s)

	a.state = state
	a.store = s

	ctx, cancel := context.WithCancel(context.Background())
	a.cancelWatch = cancel
	a.watchState(ctx, state, s)
	if cfg.DebugMode {
		metrics.StartMetricsCollection(ctx, metricsInterval)
	}

	logger.Info("services initialized", map[string]interface{}{
		"api_base_url":   cfg.APIBaseURL,
		"storage_driver": cfg.StorageDriver,
		"logged_in":      s.IsLoggedIn(),
	})
	return nil
}

// OpenState opens the configured state store, sealing the access token
// when a state secret is configured
func OpenState(cfg *config.AppConfig) (storage.StateStore, error) {
	state, err := storage.Open(cfg.StorageDriver, cfg.DataDir, cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("打开状态存储失败: %w", err)
	}
	if cfg.StateSecret == "" {
		return state, nil
	}

	sealer, err := utils.NewSealer(cfg.StateSecret)
	if err != nil {
		state.Close()
		return nil, err
	}
	return storage.NewSealedStorage(state, sealer, storage.KeyAccessToken), nil
}

// watchState reloads the store when another process rewrites the state file
func (a *App) watchState(ctx context.Context, state storage.StateStore, s *store.Store) {
	if sealed, ok := state.(*storage.SealedStorage); ok {
		state = sealed.Unwrap()
	}
	fs, ok := state.(*storage.FileStorage)
	if !ok {
		return
	}

	go func() {
		if err := fs.Watch(ctx, s.Reload); err != nil {
			utils.GetLogger().Warn("state file watch stopped", map[string]interface{}{"error": err})
		}
	}()
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully
func Run() error {
	return GetApp().run()
}

func (a *App) run() error {
	logger := utils.GetLogger()

	if a.server == nil {
		a.server = &http.Server{
			Addr:    ":" + a.config.Port,
			Handler: a.router,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	logger.Info("server started", map[string]interface{}{"port": a.config.Port})

	select {
	case err := <-errCh:
		a.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	case <-a.stopChan:
	}

	logger.Info("shutting down server", nil)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.cleanup()
	return err
}

// cleanup releases the state store and event subscribers; safe to call twice
func (a *App) cleanup() {
	a.cleanupOnce.Do(func() {
		if a.cancelWatch != nil {
			a.cancelWatch()
		}
		if a.store != nil {
			a.store.Events().Close()
		}
		if a.state != nil {
			if err := a.state.Close(); err != nil {
				utils.GetLogger().Warn("close state failed", map[string]interface{}{"error": err})
			}
		}
		utils.GetLogger().Sync()
	})
}

// Cleanup releases resources without running the server
func Cleanup() {
	GetApp().cleanup()
}

// GetConfig returns the loaded configuration
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// Store returns the session and project store
func (a *App) Store() *store.Store {
	return a.store
}

// Router returns the HTTP handler built by Initialize
func (a *App) Router() http.Handler {
	return a.router
}

// GetDIContainer returns the service container
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode reports whether debug mode is on
func IsDebugMode() bool {
	a := GetApp()
	return a.config != nil && a.config.DebugMode
}
