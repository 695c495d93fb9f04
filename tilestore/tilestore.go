// Package tilestore persists committed navmesh tile layers in SQLite so a
// later run can serve them before its own bake completes.
package tilestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gorustyt/navbake/common/logger"
	"github.com/gorustyt/navbake/detour"
	"github.com/gorustyt/navbake/detour_tile_cache"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrEmptyPath = errors.New("tilestore: empty path")

// Layer is one persisted tile layer blob.
type Layer struct {
	X, Y, Layer int32
	Version     uint64
	Data        []byte
}

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func Open(path string, l *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	if err := initSchema(db); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return &Store{db: db, log: logger.OrNop(l).Named("tilestore")}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS tile_layers (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		layer INTEGER NOT NULL,
		version INTEGER NOT NULL,
		data BLOB NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (x, y, layer)
	);`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Apply mirrors a navmesh commit: a geometry commit replaces every layer of
// the tile, otherwise only the listed layers change. Empty layers are
// deleted. A reset commit empties the table, since stored coordinates belong
// to the old grid.
func (s *Store) Apply(ctx context.Context, c detour_tile_cache.Commit) (err error) {
	if c.Reset {
		_, err = s.db.ExecContext(ctx, `DELETE FROM tile_layers`)
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	if c.Geometry {
		if _, err = tx.ExecContext(ctx, `DELETE FROM tile_layers WHERE x = ? AND y = ?`, c.X, c.Y); err != nil {
			return err
		}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, l := range c.Layers {
		if l.Empty() {
			_, err = tx.ExecContext(ctx, `DELETE FROM tile_layers WHERE x = ? AND y = ? AND layer = ?`, c.X, c.Y, l.Layer)
		} else {
			_, err = tx.ExecContext(ctx, `INSERT INTO tile_layers (x, y, layer, version, data, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (x, y, layer) DO UPDATE SET
					version = excluded.version,
					data = excluded.data,
					updated_at = excluded.updated_at`,
				c.X, c.Y, l.Layer, int64(c.Version), l.Data, now)
		}
		if err != nil {
			return fmt.Errorf("tile (%d,%d) layer %d: %w", c.X, c.Y, l.Layer, err)
		}
	}
	return tx.Commit()
}

// Listener persists every commit, logging failures.
func (s *Store) Listener(ctx context.Context) detour_tile_cache.CommitListener {
	return func(c detour_tile_cache.Commit) {
		if err := s.Apply(ctx, c); err != nil {
			s.log.Error("persisting tile", zap.Int32("x", c.X), zap.Int32("y", c.Y), zap.Error(err))
		}
	}
}

// Load returns every stored layer ordered by tile and layer.
func (s *Store) Load(ctx context.Context) ([]Layer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT x, y, layer, version, data FROM tile_layers ORDER BY y, x, layer`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Layer
	for rows.Next() {
		var l Layer
		var version int64
		if err := rows.Scan(&l.X, &l.Y, &l.Layer, &version, &l.Data); err != nil {
			return nil, err
		}
		l.Version = uint64(version)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Restore inserts every stored layer into the navmesh. Layers the navmesh
// rejects are skipped; running out of capacity stops the restore. Stored
// coordinates are only meaningful for the grid they were built on: the
// navmesh must be initialized with the same bounds and tile size.
func (s *Store) Restore(ctx context.Context, shared *detour.Shared) (int, error) {
	layers, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	err = shared.Write(func(mesh *detour.DtNavMesh) error {
		for _, l := range layers {
			_, err := mesh.InsertLayer(l.X, l.Y, l.Layer, l.Data)
			if errors.Is(err, detour.ErrCapacity) {
				return err
			}
			if err != nil {
				s.log.Warn("skipping stored layer",
					zap.Int32("x", l.X), zap.Int32("y", l.Y), zap.Int32("layer", l.Layer), zap.Error(err))
				continue
			}
			restored++
		}
		return nil
	})
	s.log.Info("restored tile layers", zap.Int("restored", restored), zap.Int("stored", len(layers)))
	return restored, err
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tile_layers`).Scan(&n)
	return n, err
}
