package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads KEY=VALUE pairs from path without overriding variables
// already present in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open env file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("open env file: %s is a directory", path)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("read env file: %w", err)
	}
	return nil
}
