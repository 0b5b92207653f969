package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"ArgumentMiner/internal/config"
	"ArgumentMiner/internal/domain"
	"ArgumentMiner/internal/ports"
)

const xlsxSheet = "results"

// FileExporter writes {dir}/{stem}_results.{ext} for every configured format.
type FileExporter struct {
	dir         string
	stem        string
	formats     []string
	maxPremises int
	logger      *slog.Logger
}

var _ ports.ResultExporter = (*FileExporter)(nil)

// NewFileExporter names outputs after the input file.
func NewFileExporter(cfg config.OutputConfig, inputFile string, logger *slog.Logger) *FileExporter {
	maxPremises := cfg.MaxPremises
	if maxPremises <= 0 {
		maxPremises = DefaultMaxPremises
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	stem := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	return &FileExporter{
		dir:         cfg.Dir,
		stem:        stem,
		formats:     cfg.Formats(),
		maxPremises: maxPremises,
		logger:      logger,
	}
}

// Path returns the output file for format.
func (e *FileExporter) Path(format string) string {
	return filepath.Join(e.dir, e.stem+"_results."+format)
}

// Export writes every format and returns the paths written.
func (e *FileExporter) Export(ctx context.Context, results []domain.ExtractionResult) ([]string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	for _, format := range e.formats {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		path := e.Path(format)
		var err error
		switch format {
		case config.FormatJSON:
			err = WriteJSON(path, results)
		case config.FormatCSV:
			if len(results) == 0 {
				e.logger.Warn("no data to write", "format", format)
				continue
			}
			err = WriteCSV(path, results, e.maxPremises)
		case config.FormatXLSX:
			if len(results) == 0 {
				e.logger.Warn("no data to write", "format", format)
				continue
			}
			err = WriteXLSX(path, results, e.maxPremises)
		default:
			err = fmt.Errorf("%w: unknown output format %q", domain.ErrConfiguration, format)
		}
		if err != nil {
			return written, err
		}

		e.logger.Info("results saved", "format", format, "path", path, "articles", len(results))
		written = append(written, path)
	}
	return written, nil
}

// WriteJSON writes results as an indented array with non-ASCII text kept as is.
func WriteJSON(path string, results []domain.ExtractionResult) error {
	if results == nil {
		results = []domain.ExtractionResult{}
	}
	return writeFile(path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return w.Flush()
	})
}

// WriteCSV writes the flat table.
func WriteCSV(path string, results []domain.ExtractionResult, maxPremises int) error {
	return writeFile(path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if err := w.Write(Columns(maxPremises)); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		if err := w.WriteAll(Flatten(results, maxPremises)); err != nil {
			return fmt.Errorf("write csv rows: %w", err)
		}
		return nil
	})
}

// WriteXLSX writes the flat table into a single-sheet workbook.
func WriteXLSX(path string, results []domain.ExtractionResult, maxPremises int) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName(wb.GetSheetName(0), xlsxSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := wb.NewStreamWriter(xlsxSheet)
	if err != nil {
		return fmt.Errorf("open sheet writer: %w", err)
	}

	rows := append([][]string{Columns(maxPremises)}, Flatten(results, maxPremises)...)
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := sw.SetRow(cellRef, values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
