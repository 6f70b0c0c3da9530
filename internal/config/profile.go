package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marker-visualizer/backend/internal/models"
)

// LoadProfile reads a YAML processing profile. An empty path returns the
// built-in defaults.
func LoadProfile(filePath string) (*models.ProcessingProfile, error) {
	if filePath == "" {
		return models.DefaultProcessingProfile(), nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer file.Close()

	return LoadProfileFromReader(file)
}

// LoadProfileFromReader parses a profile from an io.Reader, validates it and
// fills missing values with defaults.
func LoadProfileFromReader(r io.Reader) (*models.ProcessingProfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var profile models.ProcessingProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	if profile.DefaultUnit != "" {
		unit, err := models.ParseUnit(string(profile.DefaultUnit))
		if err != nil {
			return nil, fmt.Errorf("profile default_unit: %w", err)
		}
		profile.DefaultUnit = unit
	}

	if profile.InputEncoding != "" {
		if _, err := lookupEncoding(profile.InputEncoding); err != nil {
			return nil, fmt.Errorf("profile input_encoding: %w", err)
		}
	}

	limits := make(map[models.Format]int, len(profile.MaxLabelLength))
	for f, n := range profile.MaxLabelLength {
		format, err := models.ParseFormat(string(f))
		if err != nil {
			return nil, fmt.Errorf("profile max_label_length: %w", err)
		}
		limits[format] = n
	}
	profile.MaxLabelLength = limits

	overrides := make(map[string]models.Format, len(profile.FormatOverrides))
	for ext, f := range profile.FormatOverrides {
		format, err := models.ParseFormat(string(f))
		if err != nil {
			return nil, fmt.Errorf("profile format_overrides[%s]: %w", ext, err)
		}
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		overrides[ext] = format
	}
	if len(overrides) > 0 {
		profile.FormatOverrides = overrides
	}

	if profile.Name == "" {
		profile.Name = "custom"
	}
	profile.ApplyDefaults()

	return &profile, nil
}
