package repo

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxFileSize bounds file reads to keep memory predictable on large
// repositories. Larger files are skipped.
const MaxFileSize int64 = 10 * 1024 * 1024

// DirProvider enumerates files under a directory root.
type DirProvider struct {
	root string

	// SkipDirs are directory names pruned during the walk.
	SkipDirs map[string]struct{}
}

// NewDirProvider creates a provider rooted at dir.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{
		root: dir,
		SkipDirs: map[string]struct{}{
			".git":         {},
			"node_modules": {},
			"vendor":       {},
			".scout":       {},
		},
	}
}

// Files walks the root and returns files in deterministic path order.
// Unreadable files are skipped, not fatal.
func (p *DirProvider) Files(ctx context.Context) ([]File, error) {
	var files []File

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if _, skip := p.SkipDirs[d.Name()]; skip && path != p.root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > MaxFileSize {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		files = append(files, File{
			Path:     rel,
			Content:  content,
			Language: DetectLanguage(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
