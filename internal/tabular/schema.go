package tabular

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SchemaText renders a table's schema with a few sample rows as plain
// text, suitable for embedding as a retrievable document.
func (l *Loader) SchemaText(ctx context.Context, table Table, sampleRows int) string {
	parts := []string{
		fmt.Sprintf("Table Name: %q", table.Name),
		"Columns:",
	}
	for _, col := range table.Columns {
		parts = append(parts, fmt.Sprintf("- %q (%s)", col.Name, col.Type))
	}

	if sampleRows > 0 {
		sample, err := l.sampleRowsMarkdown(ctx, table.Name, sampleRows)
		if err != nil {
			l.logger.Warn("could not fetch sample rows",
				zap.String("table", table.Name),
				zap.Error(err))
			parts = append(parts, "\nSample Rows: (Could not be retrieved due to an error)")
		} else if sample != "" {
			parts = append(parts, "\nSample Rows (first few rows):", sample)
		}
	}
	return strings.Join(parts, "\n")
}

func (l *Loader) sampleRowsMarkdown(ctx context.Context, tableName string, limit int) (string, error) {
	rows, err := l.db.Query(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT $1`, tableName), limit)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = fmt.Sprintf("%q", f.Name)
	}

	var lines []string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return "", err
		}
		cells := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				cells[i] = ""
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", nil
	}

	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	out := []string{
		"| " + strings.Join(headers, " | ") + " |",
		"| " + strings.Join(sep, " | ") + " |",
	}
	return strings.Join(append(out, lines...), "\n"), nil
}
