// ABOUTME: Equipment store operations for access points, cameras, elevators and intercoms.
// ABOUTME: Each collection belongs to a project and supports list, get, create, partial update and delete.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type AccessPoint struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	Location   string    `json:"location"`
	ReaderType string    `json:"reader_type"`
	LockType   string    `json:"lock_type"`
	Monitoring string    `json:"monitoring"`
	Placement  string    `json:"placement"`
	Takeover   string    `json:"takeover"`
	Notes      string    `json:"notes"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Camera struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Location    string    `json:"location"`
	CameraType  string    `json:"camera_type"`
	Mounting    string    `json:"mounting"`
	Resolution  *float64  `json:"resolution"`
	Environment string    `json:"environment"`
	Notes       string    `json:"notes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Elevator struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	Location     string    `json:"location"`
	Bank         string    `json:"bank"`
	ElevatorType string    `json:"elevator_type"`
	FloorsServed int       `json:"floors_served"`
	Notes        string    `json:"notes"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Intercom struct {
	ID           int64     `json:"id"`
	ProjectID    int64     `json:"project_id"`
	Location     string    `json:"location"`
	IntercomType string    `json:"intercom_type"`
	Notes        string    `json:"notes"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type scanner interface{ Scan(...any) error }

// collection describes one equipment table.
type collection[T any] struct {
	table   string
	columns string
	fields  fieldSet
	scan    func(scanner) (*T, error)
}

var accessPoints = collection[AccessPoint]{
	table:   "access_points",
	columns: "id, project_id, location, reader_type, lock_type, monitoring, placement, takeover, notes, updated_at",
	fields: fieldSet{
		"location":    {column: "location", kind: textField},
		"reader_type": {column: "reader_type", kind: textField},
		"lock_type":   {column: "lock_type", kind: textField},
		"monitoring":  {column: "monitoring", kind: textField},
		"placement":   {column: "placement", kind: textField},
		"takeover":    {column: "takeover", kind: textField},
		"notes":       {column: "notes", kind: textField},
	},
	scan: func(row scanner) (*AccessPoint, error) {
		a := &AccessPoint{}
		err := row.Scan(&a.ID, &a.ProjectID, &a.Location, &a.ReaderType, &a.LockType,
			&a.Monitoring, &a.Placement, &a.Takeover, &a.Notes, &a.UpdatedAt)
		return a, err
	},
}

var cameras = collection[Camera]{
	table:   "cameras",
	columns: "id, project_id, location, camera_type, mounting, resolution, environment, notes, updated_at",
	fields: fieldSet{
		"location":    {column: "location", kind: textField},
		"camera_type": {column: "camera_type", kind: textField},
		"mounting":    {column: "mounting", kind: textField},
		"resolution":  {column: "resolution", kind: nullableRealField},
		"environment": {column: "environment", kind: textField},
		"notes":       {column: "notes", kind: textField},
	},
	scan: func(row scanner) (*Camera, error) {
		c := &Camera{}
		var resolution sql.NullFloat64
		err := row.Scan(&c.ID, &c.ProjectID, &c.Location, &c.CameraType, &c.Mounting,
			&resolution, &c.Environment, &c.Notes, &c.UpdatedAt)
		if resolution.Valid {
			c.Resolution = &resolution.Float64
		}
		return c, err
	},
}

var elevators = collection[Elevator]{
	table:   "elevators",
	columns: "id, project_id, location, bank, elevator_type, floors_served, notes, updated_at",
	fields: fieldSet{
		"location":      {column: "location", kind: textField},
		"bank":          {column: "bank", kind: textField},
		"elevator_type": {column: "elevator_type", kind: textField},
		"floors_served": {column: "floors_served", kind: intField},
		"notes":         {column: "notes", kind: textField},
	},
	scan: func(row scanner) (*Elevator, error) {
		e := &Elevator{}
		err := row.Scan(&e.ID, &e.ProjectID, &e.Location, &e.Bank, &e.ElevatorType,
			&e.FloorsServed, &e.Notes, &e.UpdatedAt)
		return e, err
	},
}

var intercoms = collection[Intercom]{
	table:   "intercoms",
	columns: "id, project_id, location, intercom_type, notes, updated_at",
	fields: fieldSet{
		"location":      {column: "location", kind: textField},
		"intercom_type": {column: "intercom_type", kind: textField},
		"notes":         {column: "notes", kind: textField},
	},
	scan: func(row scanner) (*Intercom, error) {
		i := &Intercom{}
		err := row.Scan(&i.ID, &i.ProjectID, &i.Location, &i.IntercomType, &i.Notes, &i.UpdatedAt)
		return i, err
	},
}

func list[T any](ctx context.Context, s *Store, c collection[T], projectID int64) ([]T, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+c.columns+" FROM "+c.table+" WHERE project_id = ? ORDER BY id ASC", projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := c.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func get[T any](ctx context.Context, s *Store, c collection[T], id int64) (*T, error) {
	item, err := c.scan(s.db.QueryRowContext(ctx,
		"SELECT "+c.columns+" FROM "+c.table+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %d: %w", c.table, id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func update[T any](ctx context.Context, s *Store, c collection[T], id int64, fields map[string]any) (*T, error) {
	if err := s.updateRow(ctx, c.table, c.fields, id, fields); err != nil {
		return nil, err
	}
	return get(ctx, s, c, id)
}

// insert creates a row for projectID with the given field values, which go
// through the same allow-list as updates.
func insert[T any](ctx context.Context, s *Store, c collection[T], projectID int64, fields map[string]any) (*T, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	columns := "project_id"
	marks := "?"
	args := []any{projectID}
	for _, name := range c.fields.names() {
		v, ok := fields[name]
		if !ok {
			continue
		}
		f, coerced, err := c.fields.coerce(name, v)
		if err != nil {
			return nil, err
		}
		columns += ", " + f.column
		marks += ", ?"
		args = append(args, coerced)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO "+c.table+" ("+columns+") VALUES ("+marks+")", args...)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return get(ctx, s, c, id)
}

func (s *Store) ListAccessPoints(ctx context.Context, projectID int64) ([]AccessPoint, error) {
	return list(ctx, s, accessPoints, projectID)
}

func (s *Store) GetAccessPoint(ctx context.Context, id int64) (*AccessPoint, error) {
	return get(ctx, s, accessPoints, id)
}

func (s *Store) CreateAccessPoint(ctx context.Context, a *AccessPoint) error {
	created, err := insert(ctx, s, accessPoints, a.ProjectID, map[string]any{
		"location": a.Location, "reader_type": a.ReaderType, "lock_type": a.LockType,
		"monitoring": a.Monitoring, "placement": a.Placement, "takeover": a.Takeover, "notes": a.Notes,
	})
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

func (s *Store) UpdateAccessPoint(ctx context.Context, id int64, fields map[string]any) (*AccessPoint, error) {
	return update(ctx, s, accessPoints, id, fields)
}

func (s *Store) DeleteAccessPoint(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, accessPoints.table, id)
}

func (s *Store) ListCameras(ctx context.Context, projectID int64) ([]Camera, error) {
	return list(ctx, s, cameras, projectID)
}

func (s *Store) GetCamera(ctx context.Context, id int64) (*Camera, error) {
	return get(ctx, s, cameras, id)
}

func (s *Store) CreateCamera(ctx context.Context, c *Camera) error {
	fields := map[string]any{
		"location": c.Location, "camera_type": c.CameraType, "mounting": c.Mounting,
		"environment": c.Environment, "notes": c.Notes,
	}
	if c.Resolution != nil {
		fields["resolution"] = *c.Resolution
	}
	created, err := insert(ctx, s, cameras, c.ProjectID, fields)
	if err != nil {
		return err
	}
	*c = *created
	return nil
}

func (s *Store) UpdateCamera(ctx context.Context, id int64, fields map[string]any) (*Camera, error) {
	return update(ctx, s, cameras, id, fields)
}

func (s *Store) DeleteCamera(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, cameras.table, id)
}

func (s *Store) ListElevators(ctx context.Context, projectID int64) ([]Elevator, error) {
	return list(ctx, s, elevators, projectID)
}

func (s *Store) GetElevator(ctx context.Context, id int64) (*Elevator, error) {
	return get(ctx, s, elevators, id)
}

func (s *Store) CreateElevator(ctx context.Context, e *Elevator) error {
	created, err := insert(ctx, s, elevators, e.ProjectID, map[string]any{
		"location": e.Location, "bank": e.Bank, "elevator_type": e.ElevatorType,
		"floors_served": e.FloorsServed, "notes": e.Notes,
	})
	if err != nil {
		return err
	}
	*e = *created
	return nil
}

func (s *Store) UpdateElevator(ctx context.Context, id int64, fields map[string]any) (*Elevator, error) {
	return update(ctx, s, elevators, id, fields)
}

func (s *Store) DeleteElevator(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, elevators.table, id)
}

func (s *Store) ListIntercoms(ctx context.Context, projectID int64) ([]Intercom, error) {
	return list(ctx, s, intercoms, projectID)
}

func (s *Store) GetIntercom(ctx context.Context, id int64) (*Intercom, error) {
	return get(ctx, s, intercoms, id)
}

func (s *Store) CreateIntercom(ctx context.Context, i *Intercom) error {
	created, err := insert(ctx, s, intercoms, i.ProjectID, map[string]any{
		"location": i.Location, "intercom_type": i.IntercomType, "notes": i.Notes,
	})
	if err != nil {
		return err
	}
	*i = *created
	return nil
}

func (s *Store) UpdateIntercom(ctx context.Context, id int64, fields map[string]any) (*Intercom, error) {
	return update(ctx, s, intercoms, id, fields)
}

func (s *Store) DeleteIntercom(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, intercoms.table, id)
}

// EquipmentCounts returns the number of rows of each equipment table for a
// project, keyed by table name.
func (s *Store) EquipmentCounts(ctx context.Context, projectID int64) (map[string]int, error) {
	counts := make(map[string]int, 4)
	for _, table := range []string{accessPoints.table, cameras.table, elevators.table, intercoms.table} {
		var n int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+table+" WHERE project_id = ?", projectID).Scan(&n)
		if err != nil {
			return nil, err
		}
		counts[table] = n
	}
	return counts, nil
}
