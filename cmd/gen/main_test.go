package main

import (
	"path/filepath"
	"testing"
	"time"

	"goattrib/adapters/excel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConfig(t *testing.T) {
	cfg, err := buildConfig("three-channel", 24, 7, "2023-06-01")
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Periods)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), cfg.StartDate)
	assert.Len(t, cfg.Channels, 3)

	cfg, err = buildConfig("two-channel", 12, 1, "2024-01-01")
	require.NoError(t, err)
	assert.Len(t, cfg.Channels, 2)

	_, err = buildConfig("four-channel", 12, 1, "2024-01-01")
	assert.Error(t, err)
	_, err = buildConfig("", 0, 1, "2024-01-01")
	assert.Error(t, err)
	_, err = buildConfig("", 12, 1, "01/2024")
	assert.Error(t, err)
}

func TestWriteTable(t *testing.T) {
	cfg, err := buildConfig("", 12, 42, "2024-01-01")
	require.NoError(t, err)

	for _, name := range []string{"data.csv", "data.xlsx"} {
		path := filepath.Join(t.TempDir(), name)
		table := generate(cfg)
		require.NoError(t, writeTable(path, table), name)

		read, err := excel.NewDataReader(nil).ReadFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, table.Columns, read.Columns, name)
		assert.Len(t, read.Rows, 12, name)
	}

	assert.Error(t, writeTable(filepath.Join(t.TempDir(), "data.parquet"), generate(cfg)))
}
