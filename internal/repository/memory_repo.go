package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"scopeboard/internal/models"
)

// NewMemoryDashboardRepo keeps documents in process; used when no MongoDB
// is configured and in tests.
func NewMemoryDashboardRepo() DashboardRepo {
	return &memoryDashboardRepo{dashboards: make(map[string]*models.Dashboard)}
}

type memoryDashboardRepo struct {
	mu         sync.RWMutex
	dashboards map[string]*models.Dashboard
}

func (m *memoryDashboardRepo) CreateDashboard(_ context.Context, dashboard *models.Dashboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.dashboards[dashboard.ID]; exists {
		return errors.Errorf("dashboard %s already exists", dashboard.ID)
	}
	m.dashboards[dashboard.ID] = dashboard.Clone()
	return nil
}

func (m *memoryDashboardRepo) GetDashboard(_ context.Context, id string) (*models.Dashboard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.dashboards[id]
	if !ok {
		return nil, ErrDashboardNotFound
	}
	return d.Clone(), nil
}

func (m *memoryDashboardRepo) UpdateDashboard(_ context.Context, dashboard *models.Dashboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dashboards[dashboard.ID]; !ok {
		return ErrDashboardNotFound
	}
	m.dashboards[dashboard.ID] = dashboard.Clone()
	return nil
}

func (m *memoryDashboardRepo) DeleteDashboard(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dashboards[id]; !ok {
		return ErrDashboardNotFound
	}
	delete(m.dashboards, id)
	return nil
}

func (m *memoryDashboardRepo) GetDashboards(_ context.Context) ([]*models.Dashboard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Dashboard, 0, len(m.dashboards))
	for _, d := range m.dashboards {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
