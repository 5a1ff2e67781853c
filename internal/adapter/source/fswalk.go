// Package source supplies documents to the ingestion pipeline from
// local files. Scraped documentation lands on disk as JSON (url, title,
// text); plain .txt and .md files are picked up as-is.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"copilot/internal/domain"
)

// FSWalker walks a root directory, matching files against doublestar
// include/exclude patterns, and loads each match as a document.
type FSWalker struct {
	root     string
	includes []string
	excludes []string
}

// NewFSWalker creates a walker over root. With no include patterns
// every .json, .txt and .md file under root is picked up.
func NewFSWalker(root string, includes, excludes []string) *FSWalker {
	if len(includes) == 0 {
		includes = []string{"**/*.json", "**/*.txt", "**/*.md"}
	}
	return &FSWalker{root: root, includes: includes, excludes: excludes}
}

type scrapedDoc struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Documents loads every matching file under the root, in path order so
// ingestion runs are reproducible.
func (w *FSWalker) Documents(ctx context.Context) ([]domain.Document, error) {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return nil, err
	}

	var paths []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if info.IsDir() {
			if w.matchesAny(w.excludes, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if w.matchesAny(w.includes, rel) && !w.matchesAny(w.excludes, rel) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	docs := make([]domain.Document, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := loadDocument(root, path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (w *FSWalker) matchesAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

func loadDocument(root, path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return domain.Document{}, err
	}
	sourceID := filepath.ToSlash(rel)

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var scraped scrapedDoc
		if err := json.Unmarshal(data, &scraped); err != nil {
			return domain.Document{}, fmt.Errorf("%w: %s: %v", domain.ErrDataIntegrity, sourceID, err)
		}
		title := scraped.Title
		if title == "" {
			title = sourceID
		}
		return domain.Document{
			SourceID: sourceID,
			URL:      scraped.URL,
			Title:    title,
			Text:     scraped.Text,
		}, nil
	}

	return domain.Document{
		SourceID: sourceID,
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Text:     string(data),
	}, nil
}
