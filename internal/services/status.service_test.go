package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceStatus(t *testing.T) {
	wc, _ := newFixtureCache(t, time.Hour)
	_, err := wc.BeginSession(context.Background(), "dash")
	require.NoError(t, err)

	status, err := GetServiceStatus(wc)
	require.NoError(t, err)
	assert.Equal(t, int32(os.Getpid()), status.PID)
	assert.Positive(t, status.Goroutines)
	assert.Equal(t, 1, status.Workspaces)
	assert.Equal(t, 1, status.Sessions)
}
