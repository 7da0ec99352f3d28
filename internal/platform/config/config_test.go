package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("HRD_TEST_STRING", "value")
	assert.Equal(t, "value", GetEnv("HRD_TEST_STRING", "fallback"))
	assert.Equal(t, "fallback", GetEnv("HRD_TEST_UNSET", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("HRD_TEST_INT", "8")
	t.Setenv("HRD_TEST_BAD_INT", "eight")
	assert.Equal(t, 8, GetEnvInt("HRD_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("HRD_TEST_BAD_INT", 1))
	assert.Equal(t, 1, GetEnvInt("HRD_TEST_UNSET", 1))
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("HRD_TEST_FLOAT", "2.5")
	t.Setenv("HRD_TEST_BAD_FLOAT", "2,5")
	assert.Equal(t, 2.5, GetEnvFloat("HRD_TEST_FLOAT", 5))
	assert.Equal(t, 5.0, GetEnvFloat("HRD_TEST_BAD_FLOAT", 5))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("HRD_TEST_DURATION", "90s")
	t.Setenv("HRD_TEST_BAD_DURATION", "90")
	assert.Equal(t, 90*time.Second, GetEnvDuration("HRD_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, GetEnvDuration("HRD_TEST_BAD_DURATION", time.Second))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HRD_TEST_FROM_FILE=loaded\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("HRD_TEST_FROM_FILE") })

	require.NoError(t, Load(path))
	assert.Equal(t, "loaded", GetEnv("HRD_TEST_FROM_FILE", ""))

	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.env")))
}
