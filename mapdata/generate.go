package mapdata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Bundle is the generated catalogue and the list of source names it holds.
type Bundle struct {
	Data       []byte
	SourceList []byte
}

// Generate combines every *.json file in dir, in name order, into one
// catalogue document. Both outputs are indented with two spaces and end
// with a newline.
func Generate(ctx context.Context, dir string) (*Bundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sources dir: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	files, err := LoadSources(ctx, paths)
	if err != nil {
		return nil, err
	}

	catalogue := struct {
		Sources []json.RawMessage `json:"sources"`
	}{Sources: make([]json.RawMessage, 0, len(files))}
	names := make(map[string]bool, len(files))
	for _, f := range files {
		catalogue.Sources = append(catalogue.Sources, f.Raw)
		names[f.Source.Name] = true
	}

	data := OfficialMapData{Sources: make([]Source, 0, len(files))}
	for _, f := range files {
		data.Sources = append(data.Sources, f.Source)
	}
	if err := Validate(&data); err != nil {
		return nil, fmt.Errorf("invalid catalogue: %w", err)
	}

	bundle := &Bundle{}
	if bundle.Data, err = marshalIndent(catalogue); err != nil {
		return nil, err
	}
	if bundle.SourceList, err = marshalIndent(names); err != nil {
		return nil, err
	}
	return bundle, nil
}

func marshalIndent(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode catalogue: %w", err)
	}
	return append(out, '\n'), nil
}
