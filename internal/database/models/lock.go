package models

import (
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// forUpdate adds a row lock on PostgreSQL. SQLite transactions already start
// with BEGIN IMMEDIATE, which serializes writers for the whole file.
func forUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if q.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}

	return q
}
