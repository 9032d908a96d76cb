package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scopeboard/internal/models"
)

func TestMemoryRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDashboardRepo()
	d := &models.Dashboard{ID: "b", Title: "Second", GlobalTime: models.Relative(1, models.UnitHour)}

	require.NoError(t, repo.CreateDashboard(ctx, d))
	assert.Error(t, repo.CreateDashboard(ctx, d), "ids are unique")
	require.NoError(t, repo.CreateDashboard(ctx, &models.Dashboard{ID: "a", Title: "First"}))

	got, err := repo.GetDashboard(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)

	// stored documents are copies
	got.Title = "mutated"
	again, _ := repo.GetDashboard(ctx, "b")
	assert.Equal(t, "Second", again.Title)

	all, err := repo.GetDashboards(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	d.Title = "Renamed"
	require.NoError(t, repo.UpdateDashboard(ctx, d))
	again, _ = repo.GetDashboard(ctx, "b")
	assert.Equal(t, "Renamed", again.Title)

	require.NoError(t, repo.DeleteDashboard(ctx, "b"))
	_, err = repo.GetDashboard(ctx, "b")
	assert.ErrorIs(t, err, ErrDashboardNotFound)
	assert.ErrorIs(t, repo.DeleteDashboard(ctx, "b"), ErrDashboardNotFound)
	assert.ErrorIs(t, repo.UpdateDashboard(ctx, d), ErrDashboardNotFound)
}
