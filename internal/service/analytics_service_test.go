package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arquivoshare/portal-api/internal/models"
	appErrors "github.com/arquivoshare/portal-api/pkg/errors"
)

type mockDownloadAnalytics struct {
	stats      *models.DownloadStats
	statsCalls int
	recent     []models.DownloadDetail
	byFile     map[string][]models.DownloadDetail
	dayStart   time.Time
	monthStart time.Time
}

func (m *mockDownloadAnalytics) ListByFile(ctx context.Context, fileID string, limit int) ([]models.DownloadDetail, error) {
	return m.byFile[fileID], nil
}

func (m *mockDownloadAnalytics) ListRecent(ctx context.Context, limit int) ([]models.DownloadDetail, error) {
	return m.recent, nil
}

func (m *mockDownloadAnalytics) Stats(ctx context.Context, dayStart, monthStart time.Time) (*models.DownloadStats, error) {
	m.statsCalls++
	m.dayStart = dayStart
	m.monthStart = monthStart
	return m.stats, nil
}

type memoryCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	return nil
}

func TestAnalyticsServiceStatsCaches(t *testing.T) {
	repo := &mockDownloadAnalytics{stats: &models.DownloadStats{TodayCount: 5, TotalCount: 50, UniqueUsersThisMonth: 3}}
	cache := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, &mockFileRepo{}, cache, nil, time.UTC, zap.NewNop())

	stats, fromCache, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, fromCache)
	assert.Equal(t, 5, stats.TodayCount)

	stats, fromCache, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, 50, stats.TotalCount)
	assert.Equal(t, 1, repo.statsCalls)
}

func TestAnalyticsServiceStatsBoundariesInConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	repo := &mockDownloadAnalytics{stats: &models.DownloadStats{}}
	svc := NewAnalyticsService(repo, &mockFileRepo{}, nil, nil, loc, zap.NewNop())
	// 01:30 UTC on March 6 is still the evening of March 5 in Sao Paulo.
	svc.now = func() time.Time { return time.Date(2024, time.March, 6, 1, 30, 0, 0, time.UTC) }

	_, _, err = svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, loc, repo.dayStart.Location())
	assert.Equal(t, time.Date(2024, time.March, 5, 0, 0, 0, 0, loc), repo.dayStart)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, loc), repo.monthStart)
}

func TestAnalyticsServiceFileDownloads(t *testing.T) {
	repo := &mockDownloadAnalytics{byFile: map[string][]models.DownloadDetail{
		"f1": {{Download: models.Download{ID: "d1", FileID: "f1", UserID: "u1"}, FileTitle: "Relatorio"}},
	}}
	files := &mockFileRepo{files: map[string]*models.File{"f1": {ID: "f1", Title: "Relatorio"}}}
	svc := NewAnalyticsService(repo, files, nil, nil, time.UTC, zap.NewNop())

	downloads, err := svc.FileDownloads(context.Background(), "f1", 10)
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, "Relatorio", downloads[0].FileTitle)

	_, err = svc.FileDownloads(context.Background(), "missing", 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAnalyticsServiceOverview(t *testing.T) {
	repo := &mockDownloadAnalytics{
		stats:  &models.DownloadStats{TodayCount: 2},
		recent: []models.DownloadDetail{{Download: models.Download{ID: "d1"}}},
	}
	svc := NewAnalyticsService(repo, &mockFileRepo{}, nil, nil, time.UTC, zap.NewNop())

	overview, err := svc.Overview(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, overview.Stats.TodayCount)
	assert.Len(t, overview.Recent, 1)
	assert.False(t, overview.GeneratedAt.IsZero())
}
