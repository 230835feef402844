// Package worldstore persists a block world in SQLite. Blocks are served
// from memory; each tick's changed positions are written in one transaction
// when the tick ends.
package worldstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"voxelschem.ai/internal/sim/voxel"
	"voxelschem.ai/internal/sim/world"
)

type Store struct {
	db  *sql.DB
	mem *world.MemWorld

	mu    sync.Mutex
	dirty map[voxel.Vec3i]struct{}
	once  sync.Once
}

// Open opens or creates the database at path and loads every stored block.
func Open(path string, cls world.Classifier) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db, mem: world.NewMemWorld(cls), dirty: map[voxel.Vec3i]struct{}{}}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS blocks (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			block TEXT NOT NULL,
			PRIMARY KEY (x, y, z)
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			changed INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT x, y, z, block FROM blocks`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			p   voxel.Vec3i
			raw string
		)
		if err := rows.Scan(&p.X, &p.Y, &p.Z, &raw); err != nil {
			return err
		}
		d, err := voxel.Parse(raw)
		if err != nil {
			return fmt.Errorf("block at %s: %w", p, err)
		}
		s.mem.SetBlock(p, d, false)
	}
	return rows.Err()
}

func (s *Store) BlockAt(pos voxel.Vec3i) voxel.Descriptor { return s.mem.BlockAt(pos) }

func (s *Store) IsAirLike(d voxel.Descriptor) bool { return s.mem.IsAirLike(d) }

// SetBlock applies the write in memory. It is persisted by the next EndTick.
func (s *Store) SetBlock(pos voxel.Vec3i, d voxel.Descriptor, recomputeConnectivity bool) {
	s.mem.SetBlock(pos, d, recomputeConnectivity)
	s.mu.Lock()
	s.dirty[pos] = struct{}{}
	if recomputeConnectivity {
		for _, n := range neighbours(pos) {
			s.dirty[n] = struct{}{}
		}
	}
	s.mu.Unlock()
}

func neighbours(p voxel.Vec3i) [4]voxel.Vec3i {
	return [4]voxel.Vec3i{
		{X: p.X, Y: p.Y, Z: p.Z - 1},
		{X: p.X + 1, Y: p.Y, Z: p.Z},
		{X: p.X, Y: p.Y, Z: p.Z + 1},
		{X: p.X - 1, Y: p.Y, Z: p.Z},
	}
}

// EndTick writes every position touched since the previous call.
func (s *Store) EndTick() error {
	s.mu.Lock()
	dirty := s.dirty
	s.dirty = map[voxel.Vec3i]struct{}{}
	s.mu.Unlock()
	if len(dirty) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	upsert, err := tx.Prepare(`INSERT INTO blocks(x, y, z, block) VALUES(?, ?, ?, ?)
		ON CONFLICT(x, y, z) DO UPDATE SET block=excluded.block`)
	if err != nil {
		return err
	}
	defer upsert.Close()
	del, err := tx.Prepare(`DELETE FROM blocks WHERE x=? AND y=? AND z=?`)
	if err != nil {
		return err
	}
	defer del.Close()

	for p := range dirty {
		d := s.mem.BlockAt(p)
		if s.mem.IsAirLike(d) {
			_, err = del.Exec(p.X, p.Y, p.Z)
		} else {
			_, err = upsert.Exec(p.X, p.Y, p.Z, d.Key())
		}
		if err != nil {
			return fmt.Errorf("persist %s: %w", p, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO ticks(changed) VALUES(?)`, len(dirty)); err != nil {
		return err
	}
	return tx.Commit()
}

// Len returns the number of non-air blocks held.
func (s *Store) Len() int { return s.mem.Len() }

// Ticks returns how many non-empty ticks have been committed.
func (s *Store) Ticks() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}

// Close flushes pending writes and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		err = s.EndTick()
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
