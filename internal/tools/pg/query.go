// Package pgtool exposes a read-only SQL escape hatch over the ERP's
// PostgreSQL database. The model sends the statement as a freeform payload;
// everything but SELECT is refused before touching the database.
package pgtool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/models"
	"github.com/akivoy/orion/internal/observability"
)

// queryResult is the envelope returned to the model for every outcome.
type queryResult struct {
	Status   string           `json:"status"`
	Results  []map[string]any `json:"results,omitempty"`
	RowCount *int             `json:"row_count,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// QueryTool runs SELECT statements against the ERP database.
type QueryTool struct {
	db  *sql.DB
	log *observability.Logger
}

// Open connects to PostgreSQL and wraps the handle in a tool.
func Open(dsn string, log *observability.Logger) (*QueryTool, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgtool: open: %w", err)
	}
	return &QueryTool{db: db, log: log}, nil
}

// Close releases the connection pool.
func (t *QueryTool) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Definition declares the tool as freeform; the payload is the SQL text
// itself, not JSON arguments.
func (t *QueryTool) Definition() agent.Definition {
	return agent.Definition{
		Name:        "execute_query",
		Description: "Ejecuta una consulta SELECT SQL en la base de datos PostgreSQL de Odoo",
		Kind:        models.CallCustom,
	}
}

// Invoke runs the statement and renders the result envelope. Errors are
// reported inside the envelope so the model can react to them.
func (t *QueryTool) Invoke(ctx context.Context, call agent.Call) (string, error) {
	query := strings.TrimSpace(call.RawInput)
	if !strings.HasPrefix(strings.ToUpper(query), "SELECT") {
		return envelope(queryResult{
			Status:  "error",
			Message: "Operation not allowed. Only read-only queries (SELECT) are permitted.",
		})
	}

	if t.db == nil {
		return envelope(queryResult{
			Status:  "error",
			Message: "Database connection error: no connection configured",
		})
	}

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		t.log.Warn(ctx, "sql query failed", "error", err)
		return envelope(queryResult{
			Status:  "error",
			Message: fmt.Sprintf("Query execution error: %v", err),
		})
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return envelope(queryResult{
			Status:  "error",
			Message: fmt.Sprintf("Query execution error: %v", err),
		})
	}

	var results []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return envelope(queryResult{
				Status:  "error",
				Message: fmt.Sprintf("Query execution error: %v", err),
			})
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return envelope(queryResult{
			Status:  "error",
			Message: fmt.Sprintf("Query execution error: %v", err),
		})
	}

	count := len(results)
	if results == nil {
		results = []map[string]any{}
	}
	return envelope(queryResult{Status: "success", Results: results, RowCount: &count})
}

// normalize converts driver byte slices into strings so the JSON stays
// readable for the model.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func envelope(r queryResult) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("pgtool: encode result: %w", err)
	}
	return string(data), nil
}
