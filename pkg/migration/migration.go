// Package migration applies versioned schema changes to the SQL store and
// records them in schema_migrations. Migrations run in name order, so names
// start with a timestamp:
//
//	migration.Register("20260101000001_create_products_table", migration.CreateTable[repositories.ProductRow]{})
//
// Each `storefront migrate` applies everything pending as one batch;
// `storefront migrate:rollback` undoes the latest batch.
package migration

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/logger"
)

type Migration interface {
	Up(db *gorm.DB) error
	Down(db *gorm.DB) error
}

// CreateTable migrates the gorm model T up and drops its table down.
type CreateTable[T any] struct{}

func (CreateTable[T]) Up(db *gorm.DB) error   { return db.AutoMigrate(new(T)) }
func (CreateTable[T]) Down(db *gorm.DB) error { return db.Migrator().DropTable(new(T)) }

type applied struct {
	ID    uint      `gorm:"primaryKey;autoIncrement"`
	Name  string    `gorm:"uniqueIndex;size:255;not null"`
	Batch int       `gorm:"not null;index"`
	RunAt time.Time `gorm:"autoCreateTime"`
}

func (applied) TableName() string { return "schema_migrations" }

type Entry struct {
	Name      string
	Migration Migration
}

var registry []Entry

// Register is meant for init functions. Duplicate names panic.
func Register(name string, m Migration) {
	if slices.ContainsFunc(registry, func(e Entry) bool { return e.Name == name }) {
		panic("migration: duplicate " + name)
	}
	registry = append(registry, Entry{Name: name, Migration: m})
}

// Registered returns the registry in run order.
func Registered() []Entry {
	return byName(slices.Clone(registry))
}

func byName(es []Entry) []Entry {
	slices.SortFunc(es, func(a, b Entry) int { return cmp.Compare(a.Name, b.Name) })
	return es
}

type Runner struct {
	db         *gorm.DB
	migrations []Entry
	Out        io.Writer
}

func New(db *gorm.DB) *Runner {
	return NewWith(db, Registered())
}

func NewWith(db *gorm.DB, migrations []Entry) *Runner {
	return &Runner{db: db, migrations: byName(slices.Clone(migrations)), Out: os.Stdout}
}

func (r *Runner) history() (map[string]applied, error) {
	if err := r.db.AutoMigrate(&applied{}); err != nil {
		return nil, fmt.Errorf("migration: schema_migrations: %w", err)
	}
	var rows []applied
	if err := r.db.Find(&rows).Error; err != nil {
		return nil, err
	}
	done := make(map[string]applied, len(rows))
	for _, row := range rows {
		done[row.Name] = row
	}
	return done, nil
}

// Pending lists the migrations not yet applied, in run order.
func (r *Runner) Pending() ([]Entry, error) {
	done, err := r.history()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(slices.Clone(r.migrations), func(e Entry) bool {
		_, ok := done[e.Name]
		return ok
	}), nil
}

// Run applies every pending migration as a new batch. Each migration and
// its history row commit together; the first failure stops the batch.
func (r *Runner) Run() error {
	pending, err := r.Pending()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(r.Out, "Nothing to migrate.")
		return nil
	}
	batch, err := r.latestBatch()
	if err != nil {
		return err
	}
	batch++

	for _, e := range pending {
		start := time.Now()
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := e.Migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&applied{Name: e.Name, Batch: batch}).Error
		})
		if err != nil {
			return fmt.Errorf("migration: %s: %w", e.Name, err)
		}
		logger.Info("migration applied", "name", e.Name, "batch", batch, "elapsed_ms", time.Since(start).Milliseconds())
		fmt.Fprintf(r.Out, "Migrated: %s\n", e.Name)
	}
	return nil
}

// Rollback reverts the latest batch, newest migration first.
func (r *Runner) Rollback() error {
	if _, err := r.history(); err != nil {
		return err
	}
	batch, err := r.latestBatch()
	if err != nil {
		return err
	}
	if batch == 0 {
		fmt.Fprintln(r.Out, "Nothing to roll back.")
		return nil
	}

	var rows []applied
	if err := r.db.Where("batch = ?", batch).Order("id desc").Find(&rows).Error; err != nil {
		return err
	}
	for _, row := range rows {
		i := slices.IndexFunc(r.migrations, func(e Entry) bool { return e.Name == row.Name })
		if i < 0 {
			return fmt.Errorf("migration: %s is applied but no longer registered", row.Name)
		}
		err := r.db.Transaction(func(tx *gorm.DB) error {
			if err := r.migrations[i].Migration.Down(tx); err != nil {
				return err
			}
			return tx.Delete(&applied{}, row.ID).Error
		})
		if err != nil {
			return fmt.Errorf("migration: rollback %s: %w", row.Name, err)
		}
		logger.Info("migration rolled back", "name", row.Name, "batch", batch)
		fmt.Fprintf(r.Out, "Rolled back: %s\n", row.Name)
	}
	return nil
}

// Status prints a table of every registered migration.
func (r *Runner) Status() error {
	done, err := r.history()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tSTATUS\tBATCH")
	for _, e := range r.migrations {
		if row, ok := done[e.Name]; ok {
			fmt.Fprintf(w, "%s\tRan\t%d\n", e.Name, row.Batch)
			continue
		}
		fmt.Fprintf(w, "%s\tPending\t-\n", e.Name)
	}
	return w.Flush()
}

func (r *Runner) latestBatch() (int, error) {
	var batch int
	err := r.db.Model(&applied{}).Select("COALESCE(MAX(batch), 0)").Scan(&batch).Error
	if err != nil {
		return 0, fmt.Errorf("migration: latest batch: %w", err)
	}
	return batch, nil
}
