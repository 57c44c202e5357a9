package mapdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultLoadConcurrency bounds parallel file reads in LoadSources.
const DefaultLoadConcurrency = 8

// SourceFile is one parsed source together with its original bytes. Raw is
// what gets deployed, so fields unknown to Source survive the round trip.
type SourceFile struct {
	Path   string
	ID     string
	Source Source
	Raw    json.RawMessage
}

// SourceID derives the identifier the admin API uses for a source file:
// its base name without the .json extension.
func SourceID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}

// LoadSource reads, parses and validates a single source file.
func LoadSource(path string) (*SourceFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}

	var source Source
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, fmt.Errorf("parse source %s: %w", path, err)
	}
	if err := ValidateSource(&source); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", path, err)
	}

	return &SourceFile{Path: path, ID: SourceID(path), Source: source, Raw: raw}, nil
}

// LoadSources loads paths concurrently. Results keep the order of paths; the
// first failure cancels the remaining reads.
func LoadSources(ctx context.Context, paths []string) ([]*SourceFile, error) {
	files := make([]*SourceFile, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultLoadConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := LoadSource(path)
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// LoadRaw reads a whole map-data document and checks that it is JSON.
func LoadRaw(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map data %s: %w", path, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("map data %s is not valid JSON", path)
	}
	return raw, nil
}

// LoadCatalogue reads and validates a whole map-data document.
func LoadCatalogue(path string) (*OfficialMapData, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	var data OfficialMapData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse map data %s: %w", path, err)
	}
	if err := Validate(&data); err != nil {
		return nil, fmt.Errorf("invalid map data %s: %w", path, err)
	}
	return &data, nil
}
