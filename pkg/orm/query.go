// Package orm is a thin chainable wrapper over *gorm.DB used by the SQL
// repositories. It maps gorm's not-found error to ErrNotFound and folds
// count plus page fetch into one call.
package orm

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

// ErrNotFound is returned by First when no row matches.
var ErrNotFound = errors.New("orm: record not found")

type Query struct {
	db    *gorm.DB
	table string
}

// On starts a query bound to ctx.
func On(ctx context.Context, db *gorm.DB) *Query {
	return &Query{db: db.WithContext(ctx)}
}

func (q *Query) Model(v interface{}) *Query {
	return &Query{db: q.db.Model(v), table: tableOf(q.db, v)}
}

func (q *Query) Where(query string, args ...interface{}) *Query {
	return &Query{db: q.db.Where(query, args...), table: q.table}
}

// WhereLike adds a case-insensitive substring match on any of columns. The
// term is escaped so that % and _ match literally.
func (q *Query) WhereLike(term string, columns ...string) *Query {
	if term == "" || len(columns) == 0 {
		return q
	}
	pattern := "%" + EscapeLike(strings.ToLower(term)) + "%"
	clauses := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, c := range columns {
		clauses[i] = "LOWER(" + c + ") LIKE ? ESCAPE '!'"
		args[i] = pattern
	}
	return q.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

func (q *Query) Order(value string) *Query {
	return &Query{db: q.db.Order(value), table: q.table}
}

func (q *Query) Select(query string, args ...interface{}) *Query {
	return &Query{db: q.db.Select(query, args...), table: q.table}
}

func (q *Query) Group(name string) *Query {
	return &Query{db: q.db.Group(name), table: q.table}
}

func (q *Query) Limit(n int) *Query {
	return &Query{db: q.db.Limit(n), table: q.table}
}

// Scan runs the built query into an arbitrary struct or slice.
func (q *Query) Scan(dest interface{}) error {
	return q.observe("aggregate", func() error { return q.db.Scan(dest).Error })
}

// Pluck loads a single column, de-duplicated, into dest.
func (q *Query) Pluck(column string, dest interface{}) error {
	return q.observe("distinct", func() error { return q.db.Distinct(column).Pluck(column, dest).Error })
}

func (q *Query) Get(dest interface{}) error {
	return q.observe("select", func() error { return q.db.Find(dest).Error })
}

func (q *Query) First(dest interface{}) error {
	err := q.observe("select", func() error { return q.db.First(dest).Error })
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (q *Query) Count() (int64, error) {
	var n int64
	err := q.observe("count", func() error { return q.db.Count(&n).Error })
	return n, err
}

// Paginate counts the matching rows and loads one page of them into dest.
func (q *Query) Paginate(page, limit int, dest interface{}) (int64, error) {
	total, err := q.Count()
	if err != nil {
		return 0, err
	}
	if page < 1 {
		page = 1
	}
	db := q.db
	if limit > 0 {
		db = db.Offset((page - 1) * limit).Limit(limit)
	}
	err = q.observe("select", func() error { return db.Find(dest).Error })
	return total, err
}

// DB exposes the underlying handle for updates and raw expressions.
func (q *Query) DB() *gorm.DB { return q.db }

func (q *Query) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveDBQuery(q.table, op, start)
	return err
}

// EscapeLike escapes LIKE wildcards in s with ! as the escape character.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

func tableOf(db *gorm.DB, v interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(v); err != nil || stmt.Schema == nil {
		return ""
	}
	return stmt.Schema.Table
}
