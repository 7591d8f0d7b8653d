// Package scaffold writes a starter osechi.yml.
package scaffold

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dyluth/osechi/internal/config"
	"github.com/dyluth/osechi/internal/printer"
)

//go:embed templates/*
var templatesFS embed.FS

// Options fill in the generated configuration.
type Options struct {
	BoxName  string
	RedisURL string
}

// Initialize writes osechi.yml into dir and returns its path.
// If force is true an existing file is replaced.
func Initialize(dir string, opts Options, force bool) (string, error) {
	path := filepath.Join(dir, config.DefaultPath)

	if force {
		if err := handleForce(path); err != nil {
			return "", err
		}
	} else if err := CheckExisting(dir); err != nil {
		return "", err
	}

	content, err := render(opts)
	if err != nil {
		return "", err
	}

	// The generated file must load cleanly before it is written.
	if _, err := config.Parse(content); err != nil {
		return "", fmt.Errorf("generated %s is invalid: %w", config.DefaultPath, err)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return path, nil
}

func handleForce(path string) error {
	if _, err := os.Stat(path); err == nil {
		printer.Warning("Removing existing %s...\n", filepath.Base(path))
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

func render(opts Options) ([]byte, error) {
	if opts.BoxName == "" {
		opts.BoxName = "default"
	}
	if opts.RedisURL == "" {
		opts.RedisURL = "redis://localhost:6379/0"
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/osechi.yml.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to read osechi.yml template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("failed to render osechi.yml template: %w", err)
	}
	return buf.Bytes(), nil
}

// PrintSuccess prints the created file and next steps.
func PrintSuccess(path string) {
	printer.Success("Created %s\n", path)
	printer.Info("\nNext steps:\n")
	printer.Info("  1. Set OSECHI_API_KEY to enable dish suggestions\n")
	printer.Info("  2. Run 'osechi init' again with --seed to create the empty box in Redis\n")
	printer.Info("  3. Run 'osechi serve' to start the HTTP server\n")
}
