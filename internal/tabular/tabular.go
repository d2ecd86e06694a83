// Package tabular loads CSV and XLSX uploads into per-sheet Postgres
// tables so their contents can be queried with generated SQL.
package tabular

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/store"
)

// Postgres column types assigned by inference.
const (
	TypeBigint  = "BIGINT"
	TypeDouble  = "DOUBLE PRECISION"
	TypeBoolean = "BOOLEAN"
	TypeText    = "TEXT"
)

// Column is one sanitized column of a loaded table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table describes one Postgres table created from a sheet.
type Table struct {
	// Key is the sanitized sheet identifier the table was derived from.
	Key string `json:"original_sheet_name_key"`
	// Name is the full Postgres table name.
	Name    string   `json:"db_table_name"`
	Columns []Column `json:"-"`
}

// sheet is parsed tabular data before loading.
type sheet struct {
	key    string
	header []string
	rows   [][]string
}

// Loader runs the tabular ETL against Postgres.
type Loader struct {
	db     store.Querier
	logger *zap.Logger
}

// NewLoader creates a Loader on the given connection.
func NewLoader(db store.Querier, logger *zap.Logger) *Loader {
	return &Loader{db: db, logger: logger}
}

// TableName builds the Postgres table name for a sheet of an asset,
// capped at the Postgres identifier limit.
func TableName(projectID, assetID int, sheetKey string) string {
	name := fmt.Sprintf("pgdata_proj%d_asset%d_%s", projectID, assetID, sheetKey)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// Load parses a CSV or XLSX file and loads each non-empty sheet into its
// own table, replacing any previous version. It returns the tables
// created; unsupported extensions return nil.
func (l *Loader) Load(ctx context.Context, projectID, assetID int, path string) ([]Table, error) {
	var (
		sheets []sheet
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		sheets, err = parseCSV(path)
	case ".xlsx":
		sheets, err = parseXLSX(path)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse tabular file: %w", err)
	}

	var tables []Table
	for _, sh := range sheets {
		if len(sh.rows) == 0 {
			l.logger.Warn("sheet has no data rows, skipping",
				zap.String("sheet", sh.key),
				zap.String("file", filepath.Base(path)))
			continue
		}

		table, err := l.loadSheet(ctx, TableName(projectID, assetID, sh.key), sh)
		if err != nil {
			l.logger.Error("loading sheet failed",
				zap.String("sheet", sh.key),
				zap.Error(err))
			continue
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (l *Loader) loadSheet(ctx context.Context, tableName string, sh sheet) (Table, error) {
	columns := defineColumns(sh)

	if _, err := l.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, tableName)); err != nil {
		return Table{}, fmt.Errorf("drop previous table: %w", err)
	}

	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		defs = append(defs, fmt.Sprintf("%q %s", c.Name, c.Type))
	}
	createSQL := fmt.Sprintf(`CREATE TABLE %q (pg_id SERIAL PRIMARY KEY, %s)`,
		tableName, strings.Join(defs, ", "))
	if _, err := l.db.Exec(ctx, createSQL); err != nil {
		return Table{}, fmt.Errorf("create table: %w", err)
	}

	if err := l.insertRows(ctx, tableName, columns, sh.rows); err != nil {
		_, _ = l.db.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, tableName))
		return Table{}, fmt.Errorf("insert rows: %w", err)
	}

	l.logger.Info("sheet loaded",
		zap.String("sheet", sh.key),
		zap.String("table", tableName),
		zap.Int("rows", len(sh.rows)))
	return Table{Key: sh.key, Name: tableName, Columns: columns}, nil
}

func (l *Loader) insertRows(ctx context.Context, tableName string, columns []Column, rows [][]string) error {
	quoted := make([]string, len(columns))
	params := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = strconv.Quote(c.Name)
		params[i] = "$" + strconv.Itoa(i+1)
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`,
		tableName, strings.Join(quoted, ", "), strings.Join(params, ", "))

	batch := &pgx.Batch{}
	for _, row := range rows {
		args := make([]any, len(columns))
		for i, c := range columns {
			var cell string
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			args[i] = convertCell(cell, c.Type)
		}
		batch.Queue(insertSQL, args...)
	}

	results := l.db.SendBatch(ctx, batch)
	defer results.Close()
	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

// defineColumns sanitizes, deduplicates, and type-infers the header.
func defineColumns(sh sheet) []Column {
	columns := make([]Column, 0, len(sh.header))
	seen := map[string]struct{}{}
	for i, original := range sh.header {
		name := sanitizeIdentifier(original, fmt.Sprintf("col%d_", i))
		candidate := name
		for n := 1; ; n++ {
			if _, dup := seen[candidate]; !dup {
				break
			}
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		seen[candidate] = struct{}{}
		columns = append(columns, Column{Name: candidate, Type: inferColumnType(sh.rows, i)})
	}
	return columns
}

// inferColumnType picks the narrowest type that fits every non-empty
// value in the column.
func inferColumnType(rows [][]string, col int) string {
	allInt, allFloat, allBool := true, true, true
	nonEmpty := 0

	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			allFloat = false
		}
		switch strings.ToLower(cell) {
		case "true", "false":
		default:
			allBool = false
		}
	}

	switch {
	case nonEmpty == 0:
		return TypeText
	case allBool:
		return TypeBoolean
	case allInt:
		return TypeBigint
	case allFloat:
		return TypeDouble
	default:
		return TypeText
	}
}

// convertCell parses a cell for its column type. Empty cells become NULL.
func convertCell(cell, colType string) any {
	if cell == "" {
		return nil
	}
	switch colType {
	case TypeBigint:
		if v, err := strconv.ParseInt(cell, 10, 64); err == nil {
			return v
		}
	case TypeDouble:
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			return v
		}
	case TypeBoolean:
		if v, err := strconv.ParseBool(strings.ToLower(cell)); err == nil {
			return v
		}
	}
	return cell
}

func parseCSV(path string) ([]sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, nil
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []sheet{{
		key:    sanitizeIdentifier(base, "csv_data_"),
		header: records[0],
		rows:   records[1:],
	}}, nil
}

func parseXLSX(path string) ([]sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets []sheet
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
		}
		if len(rows) == 0 {
			continue
		}
		sheets = append(sheets, sheet{
			key:    sanitizeIdentifier(sheetName, "sheet_"),
			header: rows[0],
			rows:   rows[1:],
		})
	}
	return sheets, nil
}
