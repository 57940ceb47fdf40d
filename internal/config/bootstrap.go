package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// EnsureUserConfig copies defaultPath into dataDir on first run and returns
// the user config path. An existing user config is never touched.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}

	src, err := os.Open(defaultPath)
	if err != nil {
		return "", fmt.Errorf("default config: %w", err)
	}
	defer src.Close()

	tmp := userPath + ".tmp"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return userPath, os.Rename(tmp, userPath)
}
