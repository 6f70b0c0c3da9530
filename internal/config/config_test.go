package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marker-visualizer/backend/internal/models"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written on first run")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Processing.MaxSessions)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
	assert.Equal(t, "0.0.0.0:8089", cfg.GetServerAddr())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<MarkerVisualizer>")
}

func TestLoadConfig_RoundTripAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.xml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Processing.ProfilePath = "profiles/shop.yaml"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, loaded.Server.Port)
	assert.Equal(t, filepath.Join(dir, "profiles", "shop.yaml"), loaded.Processing.ProfilePath)

	t.Setenv("PORT", "7000")
	t.Setenv("MARKER_PROFILE", "/etc/marker/profile.yaml")
	t.Setenv("DATA_DIR", "/var/lib/marker")

	loaded, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, loaded.Server.Port)
	assert.Equal(t, "/etc/marker/profile.yaml", loaded.Processing.ProfilePath)
	assert.Equal(t, "/var/lib/marker", loaded.GetDataDir())
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.xml")
	require.NoError(t, os.WriteFile(path, []byte("<MarkerVisualizer><Server>"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.DataDirectory = filepath.Join(dir, "data")
	cfg.Storage.UploadsDirectory = filepath.Join(dir, "data", "uploads")

	require.NoError(t, cfg.EnsureDirectories())

	info, err := os.Stat(cfg.Storage.UploadsDirectory)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfigLists(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{".hpgl", ".plt", ".hpg", ".cut", ".cam", ".ggt"}, cfg.GetAllowedFileTypes())
	assert.Equal(t, []string{"*"}, cfg.GetAllowedOrigins())

	cfg.Security.AllowedFileTypes = " .plt , ,.cut"
	cfg.Server.AllowOrigins = ""
	assert.Equal(t, []string{".plt", ".cut"}, cfg.GetAllowedFileTypes())
	assert.Empty(t, cfg.GetAllowedOrigins())
}

func TestLoadProfile(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		p, err := LoadProfile("")
		require.NoError(t, err)
		assert.Equal(t, models.DefaultGroupingDistance, p.GroupingDistance)
		assert.Equal(t, models.UnitMM, p.DefaultUnit)
	})

	t.Run("file with partial values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.yaml")
		content := `
name: shop-floor
grouping_distance: 25
default_unit: in
input_encoding: windows-1252
max_label_length:
  ggt: 60
format_overrides:
  PLX: hpgl
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		p, err := LoadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, "shop-floor", p.Name)
		assert.Equal(t, 25.0, p.GroupingDistance)
		assert.Equal(t, models.DefaultStripWidth, p.StripWidth)
		assert.Equal(t, models.UnitIN, p.DefaultUnit)
		assert.Equal(t, "windows-1252", p.InputEncoding)
		assert.Equal(t, 60, p.LabelLengthLimit(models.FormatTaggedBlock))
		assert.Equal(t, 150, p.LabelLengthLimit(models.FormatKnifePlotter))
		assert.Equal(t, models.FormatVectorPlotter, p.FormatOverrides[".plx"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadProfileFromReader_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "grouping_distance: [1, 2"},
		{"bad unit", "default_unit: cm"},
		{"bad encoding", "input_encoding: ebcdic"},
		{"bad format key", "max_label_length:\n  dxf: 10"},
		{"bad override", "format_overrides:\n  .dxf: autocad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadProfileFromReader(strings.NewReader(tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDecodeText(t *testing.T) {
	t.Run("latin1 upper half", func(t *testing.T) {
		got, err := DecodeText([]byte{'L', 'B', 0xC4, 0xD6, 0x03}, "iso-8859-1")
		require.NoError(t, err)
		assert.Equal(t, "LBÄÖ\x03", got)
	})

	t.Run("windows-1252 euro", func(t *testing.T) {
		got, err := DecodeText([]byte{0x80}, "windows-1252")
		require.NoError(t, err)
		assert.Equal(t, "€", got)
	})

	t.Run("utf-8 bom wins", func(t *testing.T) {
		got, err := DecodeText([]byte("\xEF\xBB\xBFÄ"), "iso-8859-1")
		require.NoError(t, err)
		assert.Equal(t, "Ä", got)
	})

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := DecodeText([]byte{0xff, 0xfe}, "utf-8")
		assert.Error(t, err)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := DecodeText([]byte("x"), "ebcdic")
		assert.Error(t, err)
	})
}
