// ABOUTME: Project store operations.
// ABOUTME: A project is one building site walk and owns the equipment collections.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Client    string    `json:"client"`
	Address   string    `json:"address"`
	Status    string    `json:"status"`
	WalkDate  string    `json:"walk_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectStatuses is the vocabulary of Project.Status in workflow order.
var ProjectStatuses = []string{"walk-scheduled", "walk-complete", "proposal", "won", "lost"}

var projectFields = fieldSet{
	"name":      {column: "name", kind: textField},
	"client":    {column: "client", kind: textField},
	"address":   {column: "address", kind: textField},
	"status":    {column: "status", kind: textField},
	"walk_date": {column: "walk_date", kind: textField},
}

const projectColumns = `id, name, client, address, status, walk_date, created_at, updated_at`

func scanProject(row scanner) (*Project, error) {
	p := &Project{}
	err := row.Scan(&p.ID, &p.Name, &p.Client, &p.Address, &p.Status, &p.WalkDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidField)
	}
	if p.Status == "" {
		p.Status = ProjectStatuses[0]
	}
	if !validStatus(p.Status) {
		return fmt.Errorf("%w: status %q", ErrInvalidField, p.Status)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (name, client, address, status, walk_date) VALUES (?, ?, ?, ?, ?)",
		p.Name, p.Client, p.Address, p.Status, p.WalkDate,
	)
	if err != nil {
		return err
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}

	created, err := s.GetProject(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *created
	return nil
}

func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return p, err
}

// ListProjects returns projects ordered by name. A non-empty query filters on
// name, client or address.
func (s *Store) ListProjects(ctx context.Context, query string) ([]*Project, error) {
	sqlQuery := "SELECT " + projectColumns + " FROM projects"
	var args []any
	if query != "" {
		like := "%" + escapeSQLLike(query) + "%"
		sqlQuery += ` WHERE name LIKE ? ESCAPE '\' OR client LIKE ? ESCAPE '\' OR address LIKE ? ESCAPE '\'`
		args = append(args, like, like, like)
	}
	sqlQuery += " ORDER BY name ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject applies a partial update and returns the updated project.
func (s *Store) UpdateProject(ctx context.Context, id int64, fields map[string]any) (*Project, error) {
	if status, ok := fields["status"].(string); ok && !validStatus(status) {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidField, status)
	}
	if name, ok := fields["name"].(string); ok && name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidField)
	}
	if err := s.updateRow(ctx, "projects", projectFields, id, fields); err != nil {
		return nil, err
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project and, by cascade, its equipment.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "projects", id)
}

// ProjectFields lists the field names UpdateProject accepts.
func ProjectFields() []string { return projectFields.names() }

func validStatus(status string) bool {
	for _, s := range ProjectStatuses {
		if s == status {
			return true
		}
	}
	return false
}
