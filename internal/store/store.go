// Package store keeps guest functions in SQLite (gorm over the pure-Go
// glebarez driver) and supplies their source to workers.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cryguy/fnbridge/internal/core"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned for unknown function names.
var ErrNotFound = errors.New("function not found")

// Function is one deployed guest program.
type Function struct {
	Name      string `gorm:"primaryKey"`
	Source    string `gorm:"not null"`
	Handler   string `gorm:"not null"`
	Loader    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a function registry. Safe for concurrent use.
type Store struct {
	db *gorm.DB
}

var _ core.SourceLoader = (*Store)(nil)

// Open opens (and migrates) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening function store %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		// Every connection would see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Function{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating function store: %w", err)
	}
	return &Store{db: db}, nil
}

// Put inserts or replaces fn.
func (s *Store) Put(fn *Function) error {
	if strings.TrimSpace(fn.Name) == "" {
		return errors.New("function name is required")
	}
	if strings.TrimSpace(fn.Source) == "" {
		return core.ErrEmptySource
	}
	if fn.Handler == "" {
		fn.Handler = "handler"
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"source", "handler", "loader", "updated_at"}),
	}).Create(fn).Error
}

// Get returns the function called name.
func (s *Store) Get(name string) (*Function, error) {
	var fn Function
	err := s.db.Where("name = ?", name).First(&fn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &fn, nil
}

// List returns every function ordered by name.
func (s *Store) List() ([]Function, error) {
	var fns []Function
	if err := s.db.Order("name").Find(&fns).Error; err != nil {
		return nil, err
	}
	return fns, nil
}

// Delete removes name. Deleting an unknown name returns ErrNotFound.
func (s *Store) Delete(name string) error {
	res := s.db.Where("name = ?", name).Delete(&Function{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// GetFunction implements core.SourceLoader.
func (s *Store) GetFunction(name string) (source, handler string, err error) {
	fn, err := s.Get(name)
	if err != nil {
		return "", "", err
	}
	return fn.Source, fn.Handler, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
