package source

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"ArgumentMiner/internal/config"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
)

// FileSource implements ArticleSource over one input file.
type FileSource struct {
	registry *Registry
	cfg      config.InputConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*FileSource)(nil)

// NewFileSource wires the reader registry with the input settings.
func NewFileSource(reg *Registry, cfg config.InputConfig, log *slog.Logger) *FileSource {
	return &FileSource{
		registry: reg,
		cfg:      cfg,
		logger:   log,
	}
}

// Load reads the file, checks the id and text columns, applies the row
// window and returns one article per remaining row.
func (s *FileSource) Load(ctx context.Context) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("%w: reader registry is not configured", domain.ErrConfiguration)
	}

	reader, err := s.registry.Resolve(filepath.Ext(s.cfg.File))
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", s.cfg.File, err)
	}

	table, err := reader.Read(ctx, s.cfg.File, ReadOptions{Sheet: s.cfg.Sheet})
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", s.cfg.File, err)
	}
	s.debug("input loaded", "file", s.cfg.File, "rows", len(table.Rows))

	textIdx := table.Index(s.cfg.TextColumn)
	if textIdx < 0 {
		return nil, fmt.Errorf("%w: text column %q not found in %s", domain.ErrConfiguration, s.cfg.TextColumn, s.cfg.File)
	}
	idIdx := table.Index(s.cfg.IDColumn)
	if idIdx < 0 {
		return nil, fmt.Errorf("%w: id column %q not found in %s", domain.ErrConfiguration, s.cfg.IDColumn, s.cfg.File)
	}

	start, end := Window(len(table.Rows), s.cfg.StartRow, s.cfg.EndRow, s.cfg.NumRows)
	articles := make([]domain.Article, 0, end-start)
	for _, row := range table.Rows[start:end] {
		articles = append(articles, domain.Article{
			ID:   cell(row, idIdx),
			Text: CleanText(cell(row, textIdx), s.cfg.StripHTML),
		})
	}

	s.debug("input rows selected", "from", start, "to", end, "articles", len(articles))
	return articles, nil
}

// Window resolves the row slice [start, end) for n rows. endRow wins over
// numRows; zero means unset. Bounds are clamped to the table.
func Window(n, startRow, endRow, numRows int) (int, int) {
	start := clamp(startRow, 0, n)
	end := n
	switch {
	case endRow > 0:
		end = endRow
	case numRows > 0:
		end = start + numRows
	}
	end = clamp(end, start, n)
	return start, end
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func (s *FileSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
