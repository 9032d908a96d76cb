package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"scopeboard/internal/models"
	"scopeboard/internal/repository"
)

// WorkspaceCache keeps one live workspace per dashboard and indexes open
// edit sessions. Idle workspaces without open sessions are evicted after ttl.
type WorkspaceCache struct {
	mu         sync.RWMutex
	repo       repository.DashboardRepo
	notifier   RefreshNotifier
	logger     *zap.Logger
	workspaces map[string]*cachedWorkspace
	sessions   map[string]*Session
	ttl        time.Duration
}

// persistTimeout bounds the write-back of applied ranges, which happens
// outside any request
const persistTimeout = 5 * time.Second

type cachedWorkspace struct {
	ws       *Workspace
	lastUsed time.Time
}

func NewWorkspaceCache(repo repository.DashboardRepo, notifier RefreshNotifier, ttl time.Duration, logger *zap.Logger) *WorkspaceCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceCache{
		repo:       repo,
		notifier:   notifier,
		logger:     logger,
		workspaces: make(map[string]*cachedWorkspace),
		sessions:   make(map[string]*Session),
		ttl:        ttl,
	}
}

// CreateDashboard persists a new dashboard with a single Default tab
func (wc *WorkspaceCache) CreateDashboard(ctx context.Context, title string) (*Workspace, error) {
	d := &models.Dashboard{
		ID:         xid.New().String(),
		Title:      title,
		Tabs:       []models.Tab{{ID: models.DefaultTabID, Title: "Default"}},
		GlobalTime: DefaultGlobalTime,
	}
	ws, err := NewWorkspace(d, wc.notifier, wc.logger)
	if err != nil {
		return nil, err
	}
	ws.persist = wc.persister()
	if err := wc.repo.CreateDashboard(ctx, ws.Snapshot()); err != nil {
		return nil, err
	}

	wc.mu.Lock()
	wc.workspaces[d.ID] = &cachedWorkspace{ws: ws, lastUsed: time.Now()}
	wc.mu.Unlock()
	wc.logger.Info("dashboard created", zap.String("dashboard", d.ID))
	return ws, nil
}

// GetWorkspace returns the cached workspace or loads it from the repository
func (wc *WorkspaceCache) GetWorkspace(ctx context.Context, id string) (*Workspace, error) {
	wc.mu.Lock()
	if cached, ok := wc.workspaces[id]; ok {
		defer wc.mu.Unlock()
		cached.lastUsed = time.Now()
		return cached.ws, nil
	}
	wc.mu.Unlock()

	d, err := wc.repo.GetDashboard(ctx, id)
	if errors.Is(err, repository.ErrDashboardNotFound) {
		return nil, models.NewError(models.KindNotFound, "dashboard %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	ws, err := NewWorkspace(d, wc.notifier, wc.logger)
	if err != nil {
		return nil, err
	}
	ws.persist = wc.persister()

	wc.mu.Lock()
	defer wc.mu.Unlock()
	// another request may have loaded it meanwhile
	if cached, ok := wc.workspaces[id]; ok {
		return cached.ws, nil
	}
	wc.workspaces[id] = &cachedWorkspace{ws: ws, lastUsed: time.Now()}
	wc.logger.Debug("workspace loaded", zap.String("dashboard", id))
	return ws, nil
}

// ListDashboards returns the persisted dashboards
func (wc *WorkspaceCache) ListDashboards(ctx context.Context) ([]*models.Dashboard, error) {
	return wc.repo.GetDashboards(ctx)
}

// DeleteDashboard removes a dashboard together with its workspace and any
// open sessions on it
func (wc *WorkspaceCache) DeleteDashboard(ctx context.Context, id string) error {
	err := wc.repo.DeleteDashboard(ctx, id)
	if errors.Is(err, repository.ErrDashboardNotFound) {
		return models.NewError(models.KindNotFound, "dashboard %q not found", id)
	}
	if err != nil {
		return err
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	if cached, ok := wc.workspaces[id]; ok {
		for sid, s := range wc.sessions {
			if s.ws == cached.ws {
				s.Cancel()
				delete(wc.sessions, sid)
			}
		}
		delete(wc.workspaces, id)
	}
	wc.logger.Info("dashboard deleted", zap.String("dashboard", id))
	return nil
}

// BeginSession opens an edit session on a dashboard
func (wc *WorkspaceCache) BeginSession(ctx context.Context, dashboardID string) (*Session, error) {
	ws, err := wc.GetWorkspace(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	s := ws.BeginSession()
	wc.mu.Lock()
	wc.sessions[s.ID] = s
	wc.mu.Unlock()
	return s, nil
}

// GetSession looks up an open session
func (wc *WorkspaceCache) GetSession(id string) (*Session, error) {
	wc.mu.RLock()
	defer wc.mu.RUnlock()
	s, ok := wc.sessions[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "session %q not found", id)
	}
	return s, nil
}

// SaveSession persists and commits a session, then forgets it
func (wc *WorkspaceCache) SaveSession(ctx context.Context, id string) ([]string, error) {
	s, err := wc.GetSession(id)
	if err != nil {
		return nil, err
	}
	refreshed, err := s.Save(func(d *models.Dashboard) error {
		return wc.repo.UpdateDashboard(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	wc.forgetSession(id)
	return refreshed, nil
}

// CancelSession drops a session without touching committed state
func (wc *WorkspaceCache) CancelSession(id string) error {
	s, err := wc.GetSession(id)
	if err != nil {
		return err
	}
	s.Cancel()
	wc.forgetSession(id)
	return nil
}

func (wc *WorkspaceCache) forgetSession(id string) {
	wc.mu.Lock()
	delete(wc.sessions, id)
	wc.mu.Unlock()
}

func (wc *WorkspaceCache) persister() func(*models.Dashboard) error {
	return func(d *models.Dashboard) error {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return wc.repo.UpdateDashboard(ctx, d)
	}
}

// Evict drops idle workspaces that have no open session. A workspace whose
// applied ranges are not yet in the repository stays until a write succeeds.
func (wc *WorkspaceCache) Evict() int {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	busy := make(map[*Workspace]bool)
	for _, s := range wc.sessions {
		busy[s.ws] = true
	}
	evicted := 0
	for id, cached := range wc.workspaces {
		if busy[cached.ws] || time.Since(cached.lastUsed) < wc.ttl {
			continue
		}
		if !cached.ws.Flush() {
			wc.logger.Warn("keeping workspace with unsaved ranges", zap.String("dashboard", id))
			continue
		}
		delete(wc.workspaces, id)
		evicted++
	}
	return evicted
}

// StartEvictor runs Evict every interval until ctx is done
func (wc *WorkspaceCache) StartEvictor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := wc.Evict(); n > 0 {
					wc.logger.Debug("idle workspaces evicted", zap.Int("count", n))
				}
			}
		}
	}()
}
