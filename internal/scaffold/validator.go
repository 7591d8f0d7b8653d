package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/osechi/internal/config"
)

// CheckExisting returns an error if dir already holds an osechi.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("box already configured\n\nFound existing: %s\n\nUse 'osechi init --force' to overwrite it", config.DefaultPath)
	}
	return nil
}
