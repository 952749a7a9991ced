// Package regionstore persists named sphere regions in a SQLite database and
// notifies subscribers of changes.
package regionstore

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/prophet-town/s2geometry/sphere"
)

// Error types reported by store operations.
const (
	ErrTypeNotFound  = "region_not_found"
	ErrTypeEmptyName = "region_name_empty"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Region is a named region as stored.
type Region struct {
	ID        string
	Name      string
	Cells     sphere.CellUnion
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Info is the listing view of a region, without the cell payload.
type Info struct {
	ID           string
	Name         string
	CellCount    int
	LeafCoverage uint64
	UpdatedAt    time.Time
}

// Store is a region database. All methods are safe for concurrent use.
type Store struct {
	db  *sql.DB
	hub *hub
}

// Open opens the region database at the given path, creating it and applying
// pending schema migrations as needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New("opening region database").
			WithTag("path", path).
			Wrap(err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, errors.New("migrating region database").
			WithTag("path", path).
			Wrap(err)
	}

	return &Store{
		db:  db,
		hub: newHub(),
	}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close closes the database. Watch channels are closed as well.
func (s *Store) Close() error {
	s.hub.close()
	return s.db.Close()
}

// DB exposes the underlying database handle for admin tooling such as the
// SQL browser and backups.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save creates or replaces the region with the given name. The union is
// stored as given; callers hand in normalized unions.
func (s *Store) Save(ctx context.Context, name string, u sphere.CellUnion) (Region, error) {
	start := time.Now()

	if name == "" {
		return Region{}, errors.New("region name is empty").
			WithType(ErrTypeEmptyName)
	}

	now := time.Now().UTC()
	region := Region{
		ID:        uuid.NewString(),
		Name:      name,
		Cells:     u.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO regions (id, name, cell_count, leaf_coverage, cells, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			cell_count = excluded.cell_count,
			leaf_coverage = excluded.leaf_coverage,
			cells = excluded.cells,
			updated_at = excluded.updated_at
		RETURNING id, created_at`,
		region.ID,
		name,
		len(u),
		int64(u.LeafCellsCovered()),
		u.Encode(),
		now,
		now,
	).Scan(&region.ID, &region.CreatedAt)
	instrumentStoreOp("save", start, err)
	if err != nil {
		return Region{}, errors.New("saving region").
			WithTag("name", name).
			Wrap(err)
	}

	s.hub.notify(Event{
		Op:        OpSaved,
		Name:      name,
		CellCount: len(u),
		Time:      now,
	})
	return region, nil
}

// Get returns the region with the given name.
func (s *Store) Get(ctx context.Context, name string) (Region, error) {
	start := time.Now()

	var region Region
	var cells []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, cells, created_at, updated_at
		FROM regions
		WHERE name = ?`,
		name,
	).Scan(&region.ID, &region.Name, &cells, &region.CreatedAt, &region.UpdatedAt)
	instrumentStoreOp("get", start, err)
	if err == sql.ErrNoRows {
		return Region{}, errors.New("region not found").
			WithType(ErrTypeNotFound).
			WithTag("name", name)
	}
	if err != nil {
		return Region{}, errors.New("loading region").
			WithTag("name", name).
			Wrap(err)
	}

	region.Cells, err = sphere.DecodeCellUnion(cells)
	if err != nil {
		return Region{}, errors.New("decoding stored region").
			WithTag("name", name).
			WithTag("id", region.ID).
			Wrap(err)
	}
	return region, nil
}

// List returns all regions ordered by name, without their cell payloads.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, cell_count, leaf_coverage, updated_at
		FROM regions
		ORDER BY name`)
	instrumentStoreOp("list", start, err)
	if err != nil {
		return nil, errors.New("listing regions").Wrap(err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var coverage int64
		if err := rows.Scan(&info.ID, &info.Name, &info.CellCount, &coverage, &info.UpdatedAt); err != nil {
			return nil, errors.New("scanning region row").Wrap(err)
		}
		info.LeafCoverage = uint64(coverage)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New("listing regions").Wrap(err)
	}
	return infos, nil
}

// Delete removes the region with the given name.
func (s *Store) Delete(ctx context.Context, name string) error {
	start := time.Now()

	res, err := s.db.ExecContext(ctx, `DELETE FROM regions WHERE name = ?`, name)
	instrumentStoreOp("delete", start, err)
	if err != nil {
		return errors.New("deleting region").
			WithTag("name", name).
			Wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.New("deleting region").
			WithTag("name", name).
			Wrap(err)
	}
	if n == 0 {
		return errors.New("region not found").
			WithType(ErrTypeNotFound).
			WithTag("name", name)
	}

	s.hub.notify(Event{
		Op:   OpDeleted,
		Name: name,
		Time: time.Now().UTC(),
	})
	return nil
}

// Subscribe registers a watcher for region changes. When names are given
// only events for those regions are delivered. The returned id releases the
// subscription through Unsubscribe.
func (s *Store) Subscribe(names ...string) (uint32, <-chan Event) {
	return s.hub.subscribe(names)
}

// Unsubscribe releases a subscription and closes its channel.
func (s *Store) Unsubscribe(id uint32) {
	s.hub.unsubscribe(id)
}
