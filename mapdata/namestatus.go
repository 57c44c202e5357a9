package mapdata

import (
	"bufio"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Changes lists source files touched by a commit range.
type Changes struct {
	Changed []string
	Deleted []string
}

// Empty reports whether nothing needs deploying.
func (c Changes) Empty() bool {
	return len(c.Changed) == 0 && len(c.Deleted) == 0
}

// DeletedIDs returns the source IDs of deleted files.
func (c Changes) DeletedIDs() []string {
	ids := make([]string, 0, len(c.Deleted))
	for _, p := range c.Deleted {
		ids = append(ids, SourceID(p))
	}
	return ids
}

// ParseNameStatus reads `git diff --name-status` output and keeps JSON files
// under dir. Added and modified files are changed, deleted files are deleted.
// A rename counts as a change of the new path and a deletion of the old one;
// a copy counts as a change of the new path. Other statuses are ignored.
//
// Git prints paths relative to the repository root, so dir must be too.
// "." selects JSON files at the root itself.
func ParseNameStatus(r io.Reader, dir string) (Changes, error) {
	dir = path.Clean(filepath.ToSlash(dir))
	if path.IsAbs(dir) || filepath.IsAbs(dir) || dir == ".." || strings.HasPrefix(dir, "../") {
		return Changes{}, fmt.Errorf("name-status dir %q must be relative to the repository root", dir)
	}
	inScope := func(p string) bool {
		if !strings.HasSuffix(p, ".json") {
			return false
		}
		if dir == "." {
			return path.Dir(p) == "."
		}
		return strings.HasPrefix(p, dir+"/")
	}

	var changes Changes
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		for i := 1; i < len(fields); i++ {
			fields[i] = path.Clean(fields[i])
		}
		status := fields[0]

		switch {
		case status == "A" || status == "M":
			if inScope(fields[1]) {
				changes.Changed = append(changes.Changed, fields[1])
			}
		case status == "D":
			if inScope(fields[1]) {
				changes.Deleted = append(changes.Deleted, fields[1])
			}
		case strings.HasPrefix(status, "R") || strings.HasPrefix(status, "C"):
			if len(fields) < 3 {
				continue
			}
			if strings.HasPrefix(status, "R") && inScope(fields[1]) {
				changes.Deleted = append(changes.Deleted, fields[1])
			}
			if inScope(fields[2]) {
				changes.Changed = append(changes.Changed, fields[2])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Changes{}, fmt.Errorf("read name-status: %w", err)
	}
	return changes, nil
}
