package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "hotbot/pkg/logx"
)

func testSnapshot(n int) Snapshot {
	return Snapshot{
		Plugin:    "weibo",
		Tab:       "weibo",
		SubTab:    "realtime",
		FetchedAt: time.Date(2024, time.March, 1, 12, n, 0, 0, time.UTC),
		Items: []Item{
			{Rank: 1, Title: "headline one", Score: "1200000"},
			{Rank: 2, Title: "headline two", URL: "https://example.com/2"},
		},
	}
}

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{}, logx.Nop())
	require.NoError(t, err)
	assert.Nil(t, st)

	_, err = Open(Config{Driver: "bolt"}, logx.Nop())
	require.Error(t, err)
}

func TestSQLiteRoundtrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "hotbot.db"),
		KeepPerFeed: 3,
	}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(i)))
	}

	got, err := st.LatestSnapshot(ctx, "weibo", "realtime")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "weibo", got.Plugin)
	assert.Equal(t, 12, got.FetchedAt.Hour())
	assert.Equal(t, 4, got.FetchedAt.Minute(), "latest snapshot should win")
	require.Len(t, got.Items, 2)
	assert.Equal(t, "headline one", got.Items[0].Title)

	missing, err := st.LatestSnapshot(ctx, "weibo", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFileRoundtrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st, err := Open(Config{Driver: "file", Path: t.TempDir()}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(0)))
	require.NoError(t, st.SaveSnapshot(ctx, testSnapshot(1)))

	got, err := st.LatestSnapshot(ctx, "weibo", "realtime")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.FetchedAt.Minute(), "overwrite keeps only the latest")

	missing, err := st.LatestSnapshot(ctx, "weibo", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
