package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilMap(t *testing.T) {
	cfg := New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.Empty(t, cfg.Keys())
}

func TestString(t *testing.T) {
	cfg := New(map[string]any{"name": "autoflow", "count": 3})

	assert.Equal(t, "autoflow", cfg.String("name", "fallback"))
	assert.Equal(t, "fallback", cfg.String("missing", "fallback"))
	assert.Equal(t, "fallback", cfg.String("count", "fallback"))
}

func TestBool(t *testing.T) {
	cfg := New(map[string]any{"enabled": true, "name": "x"})

	assert.True(t, cfg.Bool("enabled", false))
	assert.False(t, cfg.Bool("missing", false))
	assert.True(t, cfg.Bool("name", true))
}

func TestInt(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want int
	}{
		{"int", 42, 42},
		{"int64", int64(42), 42},
		{"whole float", 42.0, 42},
		{"fractional float", 42.5, -1},
		{"string", "42", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New(map[string]any{"key": tt.val})
			assert.Equal(t, tt.want, cfg.Int("key", -1))
		})
	}
}

func TestFloat(t *testing.T) {
	cfg := New(map[string]any{"ratio": 0.5, "count": 3})

	assert.Equal(t, 0.5, cfg.Float("ratio", -1))
	assert.Equal(t, 3.0, cfg.Float("count", -1))
	assert.Equal(t, -1.0, cfg.Float("missing", -1))
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "30s", 30 * time.Second},
		{"compound string", "1h30m", 90 * time.Minute},
		{"int seconds", 10, 10 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"duration", 2 * time.Minute, 2 * time.Minute},
		{"bad string", "soon", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New(map[string]any{"key": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("key", time.Second))
		})
	}
}

func TestStringSlice(t *testing.T) {
	cfg := New(map[string]any{
		"typed": []string{"a", "b"},
		"anys":  []any{"a", "b"},
		"mixed": []any{"a", 1},
	})

	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("typed", nil))
	assert.Equal(t, []string{"a", "b"}, cfg.StringSlice("anys", nil))
	assert.Nil(t, cfg.StringSlice("mixed", nil))
	assert.Nil(t, cfg.StringSlice("missing", nil))
}

func TestSub(t *testing.T) {
	cfg := New(map[string]any{
		"database": map[string]any{
			"path": "./autoflow.db",
			"wal":  true,
		},
	})

	db := cfg.Sub("database")
	assert.Equal(t, "./autoflow.db", db.String("path", ""))
	assert.True(t, db.Bool("wal", false))

	// Missing sections read as empty, not nil.
	empty := cfg.Sub("missing")
	assert.Equal(t, "default", empty.String("anything", "default"))
}

func TestMapAndHasAndAny(t *testing.T) {
	cfg := New(map[string]any{
		"section": map[string]any{"k": "v"},
		"scalar":  1,
	})

	assert.Equal(t, map[string]any{"k": "v"}, cfg.Map("section"))
	assert.Nil(t, cfg.Map("scalar"))
	assert.True(t, cfg.Has("scalar"))
	assert.False(t, cfg.Has("missing"))
	assert.Equal(t, 1, cfg.Any("scalar", nil))
	assert.Equal(t, "d", cfg.Any("missing", "d"))
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte("name: autoflow\ntriggers:\n  on_push:\n    type: webhook\n"))
	require.NoError(t, err)
	assert.Equal(t, "autoflow", cfg.String("name", ""))
	assert.Equal(t, "webhook", cfg.Sub("triggers").Sub("on_push").String("type", ""))
}

func TestFromYAML_Invalid(t *testing.T) {
	_, err := FromYAML([]byte(":\n bad\n  yaml: ["))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{"name":"autoflow","workers":4}`))
	require.NoError(t, err)
	assert.Equal(t, "autoflow", cfg.String("name", ""))
	assert.Equal(t, 4, cfg.Int("workers", 0))
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: from-yaml\n"), 0o644))

	jsonPath := filepath.Join(dir, "cfg.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name":"from-json"}`), 0o644))

	cfg, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.String("name", ""))

	cfg, err = FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "from-json", cfg.String("name", ""))
}

func TestFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = 'x'"), 0o644))

	_, err := FromFile(path)
	assert.ErrorContains(t, err, "unsupported config file extension")
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
