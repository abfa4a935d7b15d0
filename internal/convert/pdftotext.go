// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const binPdftotext = "pdftotext"

// runFunc runs name with args and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// PdftotextConverter extracts the text layer of a PDF with poppler's
// pdftotext, preserving the physical layout of tables.
type PdftotextConverter struct {
	run runFunc
}

// NewPdftotextConverter returns a converter calling pdftotext from PATH.
func NewPdftotextConverter() *PdftotextConverter {
	return &PdftotextConverter{run: runCommand}
}

// Convert implements Converter.
func (p *PdftotextConverter) Convert(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("opening attachment %s: %w", path, err)
	}
	out, err := p.run(ctx, binPdftotext, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("converting %s with pdftotext: %w", path, err)
	}
	text, err := normalize(string(out))
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", path, err)
	}
	return text, nil
}
