package tabular

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		prefix string
		want   string
	}{
		{"simple", "Product Name", "col_", "product_name"},
		{"strips punctuation", "price ($)", "col_", "price_"},
		{"leading digit gets prefix", "2024 sales", "col0_", "col0_2024_sales"},
		{"reserved word gets prefix", "Select", "col_", "col_select"},
		{"empty gets prefix", "!!!", "sheet_", "sheet_"},
		{"collapses whitespace", "a \t b", "col_", "a_b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeIdentifier(tt.in, tt.prefix))
		})
	}

	long := sanitizeIdentifier(strings.Repeat("a", 100), "col_")
	assert.Len(t, long, 63)
}

func TestTableNameCapped(t *testing.T) {
	name := TableName(12, 345, "sheet_a_very_long_sheet_name_that_exceeds_every_reasonable_limit")
	assert.LessOrEqual(t, len(name), 63)
	assert.Contains(t, name, "pgdata_proj12_asset345_")
}

func TestInferColumnType(t *testing.T) {
	rows := [][]string{
		{"1", "1.5", "true", "abc", "", "7"},
		{"2", "2", "FALSE", "1", "", ""},
	}
	assert.Equal(t, TypeBigint, inferColumnType(rows, 0))
	assert.Equal(t, TypeDouble, inferColumnType(rows, 1))
	assert.Equal(t, TypeBoolean, inferColumnType(rows, 2))
	assert.Equal(t, TypeText, inferColumnType(rows, 3))
	assert.Equal(t, TypeText, inferColumnType(rows, 4))
	assert.Equal(t, TypeBigint, inferColumnType(rows, 5))
}

func TestConvertCell(t *testing.T) {
	assert.Nil(t, convertCell("", TypeBigint))
	assert.Equal(t, int64(42), convertCell("42", TypeBigint))
	assert.Equal(t, 1.5, convertCell("1.5", TypeDouble))
	assert.Equal(t, true, convertCell("True", TypeBoolean))
	assert.Equal(t, "hello", convertCell("hello", TypeText))
}

func TestDefineColumnsDeduplicates(t *testing.T) {
	cols := defineColumns(sheet{
		header: []string{"Name", "name", "NAME "},
		rows:   [][]string{{"a", "b", "c"}},
	})
	require.Len(t, cols, 3)
	assert.Equal(t, "name", cols[0].Name)
	assert.Equal(t, "name_1", cols[1].Name)
	assert.Equal(t, "name_2", cols[2].Name)
}

func writeCSV(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "products.csv")
	content := "Product Name,Price,In Stock\nWidget,9.99,true\nGadget,12,false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	path := writeCSV(t, t.TempDir())
	loader := NewLoader(mock, zap.NewNop())

	mock.ExpectExec(`DROP TABLE IF EXISTS "pgdata_proj1_asset2_products"`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`CREATE TABLE "pgdata_proj1_asset2_products" \(pg_id SERIAL PRIMARY KEY, "product_name" TEXT, "price" DOUBLE PRECISION, "in_stock" BOOLEAN\)`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	batch := mock.ExpectBatch()
	batch.ExpectExec(`INSERT INTO "pgdata_proj1_asset2_products"`).
		WithArgs("Widget", 9.99, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec(`INSERT INTO "pgdata_proj1_asset2_products"`).
		WithArgs("Gadget", float64(12), false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tables, err := loader.Load(context.Background(), 1, 2, path)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "pgdata_proj1_asset2_products", tables[0].Name)
	assert.Equal(t, "products", tables[0].Key)
	require.Len(t, tables[0].Columns, 3)
	assert.Equal(t, TypeDouble, tables[0].Columns[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadXLSX(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "report.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"City", "Population"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Oslo", 700000}))
	require.NoError(t, f.SaveAs(path))

	loader := NewLoader(mock, zap.NewNop())

	mock.ExpectExec(`DROP TABLE IF EXISTS "pgdata_proj4_asset9_sheet1"`).
		WillReturnResult(pgxmock.NewResult("DROP", 0))
	mock.ExpectExec(`CREATE TABLE "pgdata_proj4_asset9_sheet1" \(pg_id SERIAL PRIMARY KEY, "city" TEXT, "population" BIGINT\)`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	batch := mock.ExpectBatch()
	batch.ExpectExec(`INSERT INTO "pgdata_proj4_asset9_sheet1"`).
		WithArgs("Oslo", int64(700000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tables, err := loader.Load(context.Background(), 4, 9, path)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "pgdata_proj4_asset9_sheet1", tables[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadUnsupportedExtension(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tables, err := NewLoader(mock, zap.NewNop()).Load(context.Background(), 1, 1, "/tmp/file.docx")
	assert.NoError(t, err)
	assert.Nil(t, tables)
}

func TestSchemaText(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loader := NewLoader(mock, zap.NewNop())
	table := Table{
		Name: "pgdata_proj1_asset2_products",
		Columns: []Column{
			{Name: "product_name", Type: TypeText},
			{Name: "price", Type: TypeDouble},
		},
	}

	mock.ExpectQuery(`SELECT \* FROM "pgdata_proj1_asset2_products" LIMIT \$1`).
		WithArgs(3).
		WillReturnRows(pgxmock.NewRows([]string{"pg_id", "product_name", "price"}).
			AddRow(1, "Widget", 9.99))

	text := loader.SchemaText(context.Background(), table, 3)
	assert.Contains(t, text, `Table Name: "pgdata_proj1_asset2_products"`)
	assert.Contains(t, text, `- "product_name" (TEXT)`)
	assert.Contains(t, text, `- "price" (DOUBLE PRECISION)`)
	assert.Contains(t, text, "Sample Rows (first few rows):")
	assert.Contains(t, text, `| "pg_id" | "product_name" | "price" |`)
	assert.Contains(t, text, "| 1 | Widget | 9.99 |")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaTextQueryFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	loader := NewLoader(mock, zap.NewNop())
	table := Table{Name: "pgdata_proj1_asset2_x", Columns: []Column{{Name: "a", Type: TypeText}}}

	mock.ExpectQuery(`SELECT \* FROM`).
		WithArgs(3).
		WillReturnError(assert.AnError)

	text := loader.SchemaText(context.Background(), table, 3)
	assert.Contains(t, text, "Sample Rows: (Could not be retrieved due to an error)")
}
