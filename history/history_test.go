package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) Store {
	cfg := DefaultConfig()
	cfg.Database = ":memory:"
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndLatest(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	base := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, &Run{
			ZipCode:     8001,
			City:        "Zürich",
			Days:        2,
			GeneratedAt: base.Add(time.Duration(i) * time.Hour),
			Status:      StatusSuccess,
		}))
	}
	require.NoError(t, s.Record(ctx, &Run{ZipCode: 3000, GeneratedAt: base, Status: StatusFailed, Error: "boom"}))

	runs, err := s.Latest(ctx, 8001, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].GeneratedAt.UTC())
	assert.Equal(t, base.Add(time.Hour), runs[1].GeneratedAt.UTC())
	assert.NotEqual(t, uuid.Nil, runs[0].ID)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)

	all, err := s.Latest(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	base := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, &Run{ZipCode: 8001, GeneratedAt: base.Add(-48 * time.Hour)}))
	require.NoError(t, s.Record(ctx, &Run{ZipCode: 8001, GeneratedAt: base}))

	n, err := s.Prune(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	runs, err := s.Latest(ctx, 8001, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDisabledStore(t *testing.T) {
	s, err := Open(Config{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)
	assert.NoError(t, s.Record(context.Background(), &Run{ZipCode: 8001}))
	runs, err := s.Latest(context.Background(), 8001, 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
}

func TestUnknownDialector(t *testing.T) {
	_, err := Open(Config{Enabled: true, Type: "oracle"})
	assert.Error(t, err)
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(map[string]interface{}{
		"type":      "postgres",
		"host":      "db",
		"database":  "forecast",
		"retention": "72h",
	})
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "postgres", cfg.Type)
	assert.Equal(t, "db", cfg.Host)
	assert.Equal(t, 72*time.Hour, cfg.Retention)
	assert.Equal(t, 5432, cfg.port(5432))
}
