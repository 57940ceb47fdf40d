package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveAtomic validates cfg and replaces path, keeping the previous file as
// path.bak. Readers never observe a half written file.
func SaveAtomic(path string, cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	body, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	staged := f.Name()
	defer os.Remove(staged)

	if _, err := f.Write(body); err != nil {
		f.Close()
		return fmt.Errorf("stage config: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("stage config: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("stage config: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".bak"); err != nil {
			return fmt.Errorf("back up config: %w", err)
		}
	}
	return os.Rename(staged, path)
}
