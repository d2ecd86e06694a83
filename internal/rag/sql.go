package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// executeSchemaQuery generates a SQL query from a schema document, runs
// it, and returns the results as text plus the query itself. Failures
// degrade to explanatory text so synthesis can still proceed.
func (s *Service) executeSchemaQuery(ctx context.Context, question, schemaText string) (resultsText, generatedSQL string) {
	prompt, err := s.templates.Get(promptGroup, "sql_generation_prompt", map[string]string{
		"schema":   schemaText,
		"question": question,
	})
	if err != nil {
		s.logger.Error("sql generation prompt missing", zap.Error(err))
		return "No valid query could be generated to retrieve data.", "N/A"
	}

	response, err := s.generator.GenerateText(ctx, prompt)
	if err != nil {
		s.logger.Error("sql generation failed", zap.Error(err))
		return "No valid query could be generated to retrieve data.", "N/A"
	}

	generatedSQL = extractSQL(response)
	if generatedSQL == "" {
		s.logger.Warn("no usable SELECT in generated response",
			zap.String("response", response))
		return "No valid query could be generated to retrieve data.", "N/A"
	}
	if !strings.HasPrefix(strings.ToUpper(generatedSQL), "SELECT") {
		s.logger.Error("non-SELECT query blocked", zap.String("query", generatedSQL))
		return "An invalid query was generated and blocked.", "Blocked for security reasons."
	}

	resultsText, err = s.runSelect(ctx, generatedSQL)
	if err != nil {
		s.logger.Error("executing generated query failed",
			zap.String("query", generatedSQL),
			zap.Error(err))
		return fmt.Sprintf("There was an error running the query: %v", err), generatedSQL
	}
	return resultsText, generatedSQL
}

// extractSQL pulls the query that follows the model's thinking block.
// Responses without a closed thinking block, or whose payload is not a
// SELECT, yield an empty string.
func extractSQL(response string) string {
	if response == "" {
		return ""
	}
	idx := strings.LastIndex(response, "</think>")
	if idx < 0 {
		return ""
	}
	candidate := response[idx+len("</think>"):]
	candidate = strings.NewReplacer("`", "", ";", "").Replace(candidate)
	candidate = strings.TrimSpace(candidate)
	if !strings.HasPrefix(strings.ToUpper(candidate), "SELECT") {
		return ""
	}
	return candidate
}

// runSelect executes a generated SELECT and renders the result set as a
// markdown table.
func (s *Service) runSelect(ctx context.Context, query string) (string, error) {
	rows, err := s.store.DB().Query(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = f.Name
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
		return "The query returned no results.", nil
	}

	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	out := []string{
		"Query Results:",
		"| " + strings.Join(headers, " | ") + " |",
		"| " + strings.Join(sep, " | ") + " |",
	}
	return strings.Join(append(out, lines...), "\n"), nil
}
