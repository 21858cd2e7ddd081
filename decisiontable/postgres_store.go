package decisiontable

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresDefinitionStore implements DefinitionStore backed by PostgreSQL,
// scoped to a single tenant. Definitions are normalized across the
// decision_tables, table_columns, table_rows, row_conditions, and
// row_results tables created by the migrations in migrations/.
type PostgresDefinitionStore struct {
	db       *sql.DB
	tenantID string
}

// NewPostgresDefinitionStore creates a PostgreSQL-backed store for tenantID.
func NewPostgresDefinitionStore(db *sql.DB, tenantID string) *PostgresDefinitionStore {
	return &PostgresDefinitionStore{
		db:       db,
		tenantID: tenantID,
	}
}

// Add inserts a new definition and all of its columns, rows, conditions,
// and results in a single transaction.
func (s *PostgresDefinitionStore) Add(def *Definition) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM decision_tables WHERE id = $1 AND tenant_id = $2)
	`, def.ID, s.tenantID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check table existence: %w", err)
	}
	if exists {
		return fmt.Errorf("table with ID %s already exists", def.ID)
	}

	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO decision_tables (id, tenant_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, def.ID, s.tenantID, def.Name, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert table: %w", err)
	}

	if err := insertTableBody(tx, def); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Get retrieves a full definition by table ID.
func (s *PostgresDefinitionStore) Get(id string) (*Definition, error) {
	var def Definition
	err := s.db.QueryRow(`
		SELECT id, name, created_at, updated_at
		FROM decision_tables
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID).Scan(&def.ID, &def.Name, &def.CreatedAt, &def.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("table %s: %w", id, ErrTableNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get table: %w", err)
	}

	if err := s.loadColumns(&def); err != nil {
		return nil, err
	}
	if err := s.loadRows(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

// List returns every definition owned by the tenant.
func (s *PostgresDefinitionStore) List() ([]*Definition, error) {
	rows, err := s.db.Query(`
		SELECT id FROM decision_tables
		WHERE tenant_id = $1
		ORDER BY created_at ASC
	`, s.tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan table id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	defs := make([]*Definition, 0, len(ids))
	for _, id := range ids {
		def, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Update replaces an existing definition wholesale: the table row is
// updated in place and the dependent columns/rows are rewritten.
func (s *PostgresDefinitionStore) Update(def *Definition) error {
	existing, err := s.Get(def.ID)
	if err != nil {
		return err
	}

	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		UPDATE decision_tables
		SET name = $1, updated_at = $2
		WHERE id = $3 AND tenant_id = $4
	`, def.Name, def.UpdatedAt, def.ID, s.tenantID)
	if err != nil {
		return fmt.Errorf("failed to update table: %w", err)
	}

	// Dependent rows cascade from table_rows; columns are rewritten too.
	if _, err := tx.Exec(`DELETE FROM table_columns WHERE table_id = $1`, def.ID); err != nil {
		return fmt.Errorf("failed to clear columns: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM table_rows WHERE table_id = $1`, def.ID); err != nil {
		return fmt.Errorf("failed to clear rows: %w", err)
	}

	if err := insertTableBody(tx, def); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Delete removes a definition; dependent rows cascade.
func (s *PostgresDefinitionStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM decision_tables
		WHERE id = $1 AND tenant_id = $2
	`, id, s.tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete table: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("table %s: %w", id, ErrTableNotFound)
	}
	return nil
}

func (s *PostgresDefinitionStore) loadColumns(def *Definition) error {
	rows, err := s.db.Query(`
		SELECT role, name, kind, COALESCE(variable_id, '')
		FROM table_columns
		WHERE table_id = $1
		ORDER BY position ASC
	`, def.ID)
	if err != nil {
		return fmt.Errorf("failed to load columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role, name, kind, variableID string
		if err := rows.Scan(&role, &name, &kind, &variableID); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		if role == "output" {
			def.Outputs = append(def.Outputs, OutputColumn{Name: name, Kind: Kind(kind), VariableID: variableID})
		} else {
			def.Inputs = append(def.Inputs, InputColumn{Name: name, Kind: Kind(kind), VariableID: variableID})
		}
	}
	return rows.Err()
}

func (s *PostgresDefinitionStore) loadRows(def *Definition) error {
	rows, err := s.db.Query(`
		SELECT id, kind, row_order
		FROM table_rows
		WHERE table_id = $1
		ORDER BY row_order ASC, id ASC
	`, def.ID)
	if err != nil {
		return fmt.Errorf("failed to load rows: %w", err)
	}
	defer rows.Close()

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		var row Row
		if err := rows.Scan(&rowID, &row.Kind, &row.Order); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		def.Rows = append(def.Rows, row)
		rowIDs = append(rowIDs, rowID)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}

	for i, rowID := range rowIDs {
		conds, err := s.loadConditions(rowID)
		if err != nil {
			return err
		}
		results, err := s.loadResults(rowID)
		if err != nil {
			return err
		}
		def.Rows[i].Conditions = conds
		def.Rows[i].Results = results
	}
	return nil
}

func (s *PostgresDefinitionStore) loadConditions(rowID int64) ([]Condition, error) {
	rows, err := s.db.Query(`
		SELECT column_name, operator, comparand
		FROM row_conditions
		WHERE row_id = $1
		ORDER BY position ASC
	`, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conditions: %w", err)
	}
	defer rows.Close()

	var conds []Condition
	for rows.Next() {
		var c Condition
		if err := rows.Scan(&c.Column, &c.Operator, &c.Comparand); err != nil {
			return nil, fmt.Errorf("failed to scan condition: %w", err)
		}
		conds = append(conds, c)
	}
	return conds, rows.Err()
}

func (s *PostgresDefinitionStore) loadResults(rowID int64) ([]OutputResult, error) {
	rows, err := s.db.Query(`
		SELECT column_name, value
		FROM row_results
		WHERE row_id = $1
		ORDER BY position ASC
	`, rowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	defer rows.Close()

	var results []OutputResult
	for rows.Next() {
		var r OutputResult
		if err := rows.Scan(&r.Column, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func insertTableBody(tx *sql.Tx, def *Definition) error {
	pos := 0
	for _, col := range def.Inputs {
		if err := insertColumn(tx, def.ID, "input", pos, col.Name, string(col.Kind), col.VariableID); err != nil {
			return err
		}
		pos++
	}
	for _, col := range def.Outputs {
		if err := insertColumn(tx, def.ID, "output", pos, col.Name, string(col.Kind), col.VariableID); err != nil {
			return err
		}
		pos++
	}

	for _, row := range def.Rows {
		var rowID int64
		err := tx.QueryRow(`
			INSERT INTO table_rows (table_id, kind, row_order)
			VALUES ($1, $2, $3)
			RETURNING id
		`, def.ID, string(row.Kind), row.Order).Scan(&rowID)
		if err != nil {
			return fmt.Errorf("failed to insert row: %w", err)
		}

		for i, cond := range row.Conditions {
			_, err := tx.Exec(`
				INSERT INTO row_conditions (row_id, position, column_name, operator, comparand)
				VALUES ($1, $2, $3, $4, $5)
			`, rowID, i, cond.Column, cond.Operator, cond.Comparand)
			if err != nil {
				return fmt.Errorf("failed to insert condition: %w", err)
			}
		}

		for i, res := range row.Results {
			_, err := tx.Exec(`
				INSERT INTO row_results (row_id, position, column_name, value)
				VALUES ($1, $2, $3, $4)
			`, rowID, i, res.Column, res.Value)
			if err != nil {
				return fmt.Errorf("failed to insert result: %w", err)
			}
		}
	}
	return nil
}

func insertColumn(tx *sql.Tx, tableID, role string, pos int, name, kind, variableID string) error {
	_, err := tx.Exec(`
		INSERT INTO table_columns (table_id, role, position, name, kind, variable_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`, tableID, role, pos, name, kind, variableID)
	if err != nil {
		return fmt.Errorf("failed to insert column: %w", err)
	}
	return nil
}
