package options

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads option sets from a YAML file on every call, so edits to the
// file are picked up without a restart.
type FileSource struct {
	Path string
}

// NewFileSource creates a source for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Current parses the file. Fields absent from the file fall back to Default.
func (f *FileSource) Current(ctx context.Context) (Set, error) {
	if err := ctx.Err(); err != nil {
		return Set{}, err
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return Set{}, fmt.Errorf("read options file: %w", err)
	}
	var set Set
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return Set{}, fmt.Errorf("parse options file %s: %w", f.Path, err)
	}
	return set.FillMissing(Default()), nil
}
