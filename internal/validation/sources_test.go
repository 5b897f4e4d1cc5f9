package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "covidlag/internal/errors"
)

func TestValidateSource(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}
	csv := write("owid.csv", "iso_code\n")
	xlsx := write("population.xlsx", "PK")
	lock := write("~$population.xlsx", "x")
	empty := write("empty.csv", "")
	txt := write("population.txt", "x")

	tests := []struct {
		name    string
		source  string
		path    string
		wantErr string
	}{
		{"observation csv", "observations", csv, ""},
		{"population xlsx", "population", xlsx, ""},
		{"observation xlsx", "observations", xlsx, "unsupported extension"},
		{"population txt", "population", txt, "unsupported extension"},
		{"lock file", "population", lock, "lock file"},
		{"empty", "observations", empty, "empty"},
		{"missing", "observations", filepath.Join(dir, "missing.csv"), "does not exist"},
		{"directory", "population", dir, "directory"},
	}
	v := NewFileValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSource(tt.source, tt.path)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLoad))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports", "nested")
	v := NewFileValidator(nil)

	require.NoError(t, v.ValidateOutputDirectory(dir))
	assert.DirExists(t, dir)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe is removed")
}
