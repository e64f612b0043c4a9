package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/russianmaster/russianmaster-lms/internal/examdoc/extract"
	"github.com/russianmaster/russianmaster-lms/internal/examdoc/parser"
)

type fileResult struct {
	File   string         `json:"file"`
	Result *parser.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func parseFile(ctx context.Context, ex *extract.Extractor, path, title string) (parser.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return parser.Result{}, err
	}
	text, err := ex.Text(ctx, filepath.Base(path), data)
	if err != nil {
		return parser.Result{}, err
	}
	res, err := parser.Parse(text)
	if err != nil {
		return parser.Result{}, err
	}
	if res.Meta.Title == "" {
		res.Meta.Title = title
	}
	return res, nil
}

// parseDir parses every supported file in dir, GOMAXPROCS at a time. A file
// that fails is reported in its entry; only listing the directory or a
// cancelled context fails the batch. Results are ordered by file name.
func parseDir(ctx context.Context, ex *extract.Extractor, dir, title string) ([]fileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && extract.Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]fileResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i].File = name
			res, err := parseFile(gctx, ex, filepath.Join(dir, name), title)
			if err != nil {
				out[i].Error = err.Error()
				return nil
			}
			out[i].Result = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(items []parser.Item) string {
	counts := map[parser.Kind]int{}
	for _, it := range items {
		counts[it.Kind]++
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[parser.Kind(k)])
	}
	return fmt.Sprintf("%d items (%s)", len(items), strings.Join(parts, " "))
}
