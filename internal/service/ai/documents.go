package ai

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

const (
	metaSource     = "source"
	metaStartIndex = "start_index"
)

// ErrNoDocuments is returned when a documents path yields no readable text.
var ErrNoDocuments = errors.New("no readable documents")

// LoadDocuments reads path, a file or a directory walked recursively, through
// the eino file loader. Files are parsed by extension with plain text as the
// fallback.
func LoadDocuments(ctx context.Context, path string) ([]*schema.Document, error) {
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("create parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return nil, fmt.Errorf("create file loader: %w", err)
	}

	paths, err := documentPaths(path)
	if err != nil {
		return nil, err
	}

	var docs []*schema.Document
	for _, p := range paths {
		loaded, err := loader.Load(ctx, document.Source{URI: p})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		for _, doc := range loaded {
			if strings.TrimSpace(doc.Content) == "" {
				continue
			}
			if doc.MetaData == nil {
				doc.MetaData = map[string]any{}
			}
			doc.MetaData[metaSource] = p
			docs = append(docs, doc)
		}
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, path)
	}
	return docs, nil
}

func documentPaths(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("documents path: %w", err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk documents: %w", err)
	}
	return paths, nil
}

// SplitDocuments cuts each document into chunks of at most size runes, each
// starting overlap runes before the previous one ended. Chunks keep the
// source metadata and record their rune offset under "start_index".
func SplitDocuments(docs []*schema.Document, size, overlap int) []*schema.Document {
	if size <= 0 {
		return docs
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	step := size - overlap

	var chunks []*schema.Document
	for _, doc := range docs {
		runes := []rune(doc.Content)
		for start := 0; start < len(runes); start += step {
			end := min(start+size, len(runes))
			text := strings.TrimSpace(string(runes[start:end]))
			if text != "" {
				meta := make(map[string]any, len(doc.MetaData)+1)
				for k, v := range doc.MetaData {
					meta[k] = v
				}
				meta[metaStartIndex] = start
				chunks = append(chunks, &schema.Document{
					ID:       fmt.Sprintf("%s#%d", doc.ID, len(chunks)),
					Content:  text,
					MetaData: meta,
				})
			}
			if end == len(runes) {
				break
			}
		}
	}
	return chunks
}
