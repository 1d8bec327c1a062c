package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/skyglow/skyglow-go/internal/errors"
)

const osWindows = "windows"

// GetDefaultConfigPaths returns the configuration directories for the current
// operating system. When one of them already holds config.yaml, only that
// directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "skyglow"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "skyglow"),
			"/etc/skyglow",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

// moveFile copies src to dst and removes src
func moveFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // internal temp file
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // config path
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("error copying file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("error closing destination file: %w", err)
	}
	_ = in.Close()
	return os.Remove(src)
}
