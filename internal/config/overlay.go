package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"realty-engine/internal/domain"
)

// LocationsFile is the optional locations.yml next to the user config.
type LocationsFile struct {
	Locations  []domain.LocationConfig `yaml:"locations"`
	AreaCities map[string][]string     `yaml:"area_cities"`
}

// OverlayLocations replaces the configured locations (and merges area
// membership) from path. A missing file is not an error.
func OverlayLocations(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var lf LocationsFile
	if err := yaml.Unmarshal(b, &lf); err != nil {
		return err
	}

	if len(lf.Locations) > 0 {
		cfg.Search.Locations = lf.Locations
	}
	if len(lf.AreaCities) > 0 && cfg.Validation.AreaCities == nil {
		cfg.Validation.AreaCities = map[string][]string{}
	}
	for id, cities := range lf.AreaCities {
		cfg.Validation.AreaCities[id] = cities
	}
	return nil
}
