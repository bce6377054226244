package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmnavarro/sabio/examples"
)

// runInit initializes a Sabio working directory with default files:
// config, product scope, and capability catalog. Existing files are
// never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing Sabio workspace in %s\n", dir)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	files := []struct {
		name    string
		content []byte
		perm    os.FileMode
	}{
		// Config may hold API keys, so it gets restricted permissions.
		{"config.yaml", examples.ConfigYAML, 0o600},
		{"PRODUCT_SCOPE.md", examples.ProductScopeMD, 0o644},
		{"CAPABILITIES.yaml", examples.CapabilitiesYAML, 0o644},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeIfMissing(path, f.content, f.perm); err != nil {
			return err
		}
		fmt.Fprintf(w, "  ✓ %s\n", path)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml to select a model provider, then adjust")
	fmt.Fprintln(w, "PRODUCT_SCOPE.md to enable or disable capabilities.")
	return nil
}

// writeIfMissing writes content to path only if the file does not
// already exist, so init never overwrites user customizations.
func writeIfMissing(path string, content []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil // already exists, skip
	}
	return os.WriteFile(path, content, perm)
}
