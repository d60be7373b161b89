package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"go.uber.org/zap"

	"lecture-companion/internal/config"
	"lecture-companion/internal/diagnostics"
	"lecture-companion/internal/domain"
	"lecture-companion/internal/logging"
	"lecture-companion/internal/remote"
	"lecture-companion/internal/session"
	"lecture-companion/internal/tasks"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

var lectureDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Lecture videos",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.webm",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// lectureService is the full remote surface the App consumes: session
// tracking plus the two task-creating calls.
type lectureService interface {
	session.RemoteService
	Upload(ctx context.Context, filePath, channelName string) (string, error)
	ImportURL(ctx context.Context, videoURL, channelName string) (string, error)
}

// App wires configuration, the tracking session, diagnostics, and UI runtime
// callbacks. The frontend only ever calls the bound methods below.
type App struct {
	Store   config.Store
	Checker *diagnostics.Checker
	Health  domain.HealthReport

	log    *zap.Logger
	events *tasks.EventBus

	// newService builds the remote client; injectable for tests.
	newService func(baseURL string, log *zap.Logger) lectureService

	mu         sync.Mutex
	runtimeCtx context.Context
	settings   domain.Settings
	svc        lectureService
	controller *session.Controller
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}

	store := config.NewJSONStore(filepath.Join(homeDir, ".lecture-companion", "settings.json"))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	log, err := logging.New(settings.LogLevel, settings.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	checker := diagnostics.NewChecker()

	app := &App{
		Store:   store,
		Checker: checker,
		Health:  checker.Run(settings),
		log:     log,
		events:  tasks.NewEventBus(1000),
		newService: func(baseURL string, log *zap.Logger) lectureService {
			return remote.NewClient(baseURL, log)
		},
		settings: settings,
	}
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	return wails.Run(&options.App{
		Title:  "Lecture Companion",
		Width:  1180,
		Height: 780,
		AssetServer: &assetserver.Options{
			Handler: http.FileServer(http.Dir("./frontend")),
		},
		OnStartup: a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			controller := a.controller
			a.runtimeCtx = nil
			a.mu.Unlock()

			if controller != nil {
				controller.Stop()
			}
			_ = a.log.Sync()
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context and wires push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	a.events.SetListener(func(event tasks.Event) {
		a.mu.Lock()
		rctx := a.runtimeCtx
		a.mu.Unlock()
		if rctx != nil {
			wailsruntime.EventsEmit(rctx, "session:event", event)
		}
	})
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.HealthReport {
	return a.Health
}

// RefreshDiagnostics reloads settings and reruns the startup checks.
func (a *App) RefreshDiagnostics() (domain.HealthReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.HealthReport{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	a.Health = a.Checker.Run(settings)
	return a.Health, nil
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings persists settings and refreshes diagnostics. A changed server
// URL or poll interval takes effect when the next task starts.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := config.Normalize(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.settings = normalized
	a.mu.Unlock()

	if a.Checker != nil {
		a.Health = a.Checker.Run(normalized)
	}
	return normalized, nil
}

// PickLectureFile opens a native file dialog for video selection.
func (a *App) PickLectureFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select lecture video",
		Filters: lectureDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// UploadLecture uploads a local video file and starts tracking the new task.
func (a *App) UploadLecture(path string) (domain.Session, error) {
	svc, controller, settings, err := a.ensureSession()
	if err != nil {
		return domain.Session{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	taskID, err := svc.Upload(ctx, path, settings.ChannelName)
	if err != nil {
		a.log.Error("upload failed", zap.String("path", path), zap.Error(err))
		return domain.Session{}, fmt.Errorf("upload lecture: %w", err)
	}

	controller.StartNewTask(taskID)
	return controller.Snapshot(), nil
}

// ImportLecture asks the server to ingest a lecture from a video URL and
// starts tracking the new task.
func (a *App) ImportLecture(videoURL string) (domain.Session, error) {
	svc, controller, settings, err := a.ensureSession()
	if err != nil {
		return domain.Session{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	taskID, err := svc.ImportURL(ctx, videoURL, settings.ChannelName)
	if err != nil {
		a.log.Error("import failed", zap.String("url", videoURL), zap.Error(err))
		return domain.Session{}, fmt.Errorf("import lecture: %w", err)
	}

	controller.StartNewTask(taskID)
	return controller.Snapshot(), nil
}

// StartNewTask begins tracking a task whose upload the UI performed itself.
func (a *App) StartNewTask(taskID string) (domain.Session, error) {
	_, controller, _, err := a.ensureSession()
	if err != nil {
		return domain.Session{}, err
	}

	controller.StartNewTask(taskID)
	return controller.Snapshot(), nil
}

// RecordSos appends a playback timestamp to the session's SOS marks and
// returns the updated snapshot.
func (a *App) RecordSos(seconds float64) domain.Session {
	a.mu.Lock()
	controller := a.controller
	a.mu.Unlock()

	if controller == nil {
		// Marks before any task exists are kept by a session-less controller.
		var err error
		if _, controller, _, err = a.ensureSession(); err != nil {
			a.log.Warn("sos mark dropped, session unavailable",
				zap.Float64("seconds", seconds),
				zap.Error(err))
			return domain.Session{}
		}
	}

	controller.RecordSos(seconds)
	return controller.Snapshot()
}

// RequestSummaryGeneration triggers summary (re)generation for the current
// task.
func (a *App) RequestSummaryGeneration() error {
	a.mu.Lock()
	controller := a.controller
	a.mu.Unlock()

	if controller == nil {
		return tasks.ErrInvalidTransition
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return controller.RequestSummaryGeneration(ctx)
}

// CurrentSession returns the read-only session snapshot for the UI.
func (a *App) CurrentSession() domain.Session {
	a.mu.Lock()
	controller := a.controller
	a.mu.Unlock()

	if controller == nil {
		return domain.Session{}
	}
	return controller.Snapshot()
}

// SessionEvents returns all events with sequence greater than sinceSeq.
func (a *App) SessionEvents(sinceSeq int64) []tasks.Event {
	return a.events.Since(sinceSeq)
}

// ensureSession returns the current service and controller, building them
// from the persisted settings on first use or after the server URL or poll
// cadence changed between tasks.
func (a *App) ensureSession() (lectureService, *session.Controller, domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return nil, nil, domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rebuild := a.controller == nil ||
		a.settings.ServerURL != settings.ServerURL ||
		a.settings.PollIntervalSeconds != settings.PollIntervalSeconds
	a.settings = settings

	if rebuild {
		if a.controller != nil {
			a.controller.Stop()
		}
		a.svc = a.newService(settings.ServerURL, a.log)
		a.controller = session.NewController(a.svc, a.events, session.Config{
			ServerURL:    settings.ServerURL,
			PollInterval: time.Duration(settings.PollIntervalSeconds) * time.Second,
		}, a.log)
	}

	return a.svc, a.controller, settings, nil
}

// runtimeContext returns the Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}
