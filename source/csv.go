package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/asaidimu/go-scoss/core/schema"
	"go.uber.org/zap"
)

// ErrEmptySource is returned when a source has no header row.
var ErrEmptySource = errors.New("source has no header row")

// Parsed is a decoded CSV: the schema derived from its header and the rows as
// documents keyed by column name. Values are kept as the raw cell strings.
type Parsed struct {
	Schema  *schema.SchemaDefinition
	Records []schema.Document
}

// WithNumberColumns returns a copy whose schema declares the named columns as
// numbers, so unparseable cells are reported when a table is built. Columns
// the source does not have are skipped. Records are shared with p.
func (p *Parsed) WithNumberColumns(columns ...string) *Parsed {
	sc := p.Schema.Clone()
	for _, col := range columns {
		if sc.HasField(col) {
			_ = sc.SetFieldType(col, schema.FieldTypeNumber)
		}
	}
	return &Parsed{Schema: sc, Records: p.Records}
}

// cleanHeader trims whitespace, a byte order mark and stray quotes.
func cleanHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	return strings.ReplaceAll(h, `"`, "")
}

// ParseCSV reads a CSV with a header row. Rows shorter than the header are
// padded with empty cells, longer rows are truncated; both are logged.
func ParseCSV(ctx context.Context, r io.Reader, name string, logger *zap.Logger) (*Parsed, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	csvReader := csv.NewReader(r)
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptySource)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read CSV header: %w", name, err)
	}

	columns := make([]string, len(headers))
	for i, h := range headers {
		columns[i] = cleanHeader(h)
		if columns[i] == "" {
			columns[i] = fmt.Sprintf("column_%d", i+1)
			logger.Warn("Empty CSV header, using positional name", zap.String("source", name), zap.String("column", columns[i]))
		}
	}

	sc, err := schema.NewSchemaFromColumns(name, columns)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid CSV header: %w", name, err)
	}

	records := make([]schema.Document, 0)
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: CSV read error: %w", name, err)
		}

		switch {
		case len(row) < len(columns):
			logger.Warn("Short CSV row padded", zap.String("source", name), zap.Int("line", line), zap.Int("cells", len(row)), zap.Int("columns", len(columns)))
		case len(row) > len(columns):
			logger.Warn("Long CSV row truncated", zap.String("source", name), zap.Int("line", line), zap.Int("cells", len(row)), zap.Int("columns", len(columns)))
		}

		doc := make(schema.Document, len(columns))
		for i, col := range columns {
			if i < len(row) {
				doc[col] = row[i]
			} else {
				doc[col] = ""
			}
		}
		records = append(records, doc)
	}

	logger.Debug("CSV parsed", zap.String("source", name), zap.Int("records", len(records)), zap.Int("columns", len(columns)))
	return &Parsed{Schema: sc, Records: records}, nil
}
