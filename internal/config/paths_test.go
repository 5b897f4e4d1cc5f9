package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(t.TempDir(), "elsewhere")

	tests := []struct {
		name    string
		cfg     PathsConfig
		data    string
		reports string
	}{
		{
			name:    "relative to base",
			cfg:     PathsConfig{BaseDir: base, DataDir: "data", ReportsDir: "out", LogsDir: "logs"},
			data:    filepath.Join(base, "data"),
			reports: filepath.Join(base, "out"),
		},
		{
			name:    "absolute reports dir",
			cfg:     PathsConfig{BaseDir: base, DataDir: "data", ReportsDir: abs, LogsDir: "logs"},
			data:    filepath.Join(base, "data"),
			reports: abs,
		},
		{
			name:    "empty dirs fall back to defaults",
			cfg:     PathsConfig{BaseDir: base},
			data:    filepath.Join(base, DefaultDataDir),
			reports: filepath.Join(base, DefaultReportsDir),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := GetPaths(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.data, p.DataDir)
			assert.Equal(t, tt.reports, p.ReportsDir)
			assert.Equal(t, filepath.Join(tt.reports, DefaultPlotsDir), p.PlotsDir)
		})
	}
}

func TestPaths_EnsureDirectories(t *testing.T) {
	p, err := GetPaths(PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, p.EnsureDirectories())
	for _, dir := range []string{p.DataDir, p.ReportsDir, p.PlotsDir, p.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestPaths_Helpers(t *testing.T) {
	p, err := GetPaths(PathsConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(p.DataDir, "x.csv"), p.GetDataPath("x.csv"))
	assert.Equal(t, "/tmp/x.csv", p.GetDataPath("/tmp/x.csv"))
	assert.Equal(t, filepath.Join(p.ReportsDir, "r.csv"), p.GetReportPath("r.csv"))
	assert.Equal(t, filepath.Join(p.PlotsDir, "s.png"), p.GetPlotPath("s.png"))
	assert.Equal(t, filepath.Join(p.LogsDir, "covidlag.log"), p.GetLogPath("covidlag.log"))
	assert.Equal(t, "/var/log/covidlag.log", p.GetLogPath("/var/log/covidlag.log"))

	require.NoError(t, p.EnsureDirectories())
	file := p.GetDataPath("present.csv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	assert.True(t, FileExists(file))
	assert.False(t, FileExists(p.DataDir))
	assert.False(t, FileExists(p.GetDataPath("absent.csv")))
}
