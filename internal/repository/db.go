package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// on returns tx when the caller is inside a transaction, otherwise the
// repository's own handle. Both are bound to ctx.
func on(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// forUpdate row-locks the selected rows with FOR NO KEY UPDATE, which
// excludes other writers but not the KEY SHARE locks taken by inserts of rows
// referencing them.
func forUpdate(q *gorm.DB) *gorm.DB {
	return q.Clauses(clause.Locking{Strength: "NO KEY UPDATE"})
}

func pageBounds(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > max {
		limit = def
	}
	return (page - 1) * limit, limit
}
