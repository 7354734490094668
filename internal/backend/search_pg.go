/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SearchHighlights runs Postgres full-text search over the highlight text of
// one document, ranked by relevance then page order. The 'simple'
// configuration matches the GIN index from the search migration and avoids
// language-dependent stemming surprises.
func SearchHighlights(ctx context.Context, db *sql.DB, fingerprint, query string) ([]Highlight, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	rows, err := db.QueryContext(ctx, `
		SELECT h.id, h.owner, h.pageno, h.color, h.text, h.updated_at
		FROM highlights h
		JOIN documents d ON d.id = h.document_id
		WHERE d.fingerprint = $1
		  AND to_tsvector('simple', h.text) @@ plainto_tsquery('simple', $2)
		ORDER BY ts_rank(to_tsvector('simple', h.text), plainto_tsquery('simple', $2)) DESC,
		         h.pageno, h.id`, fingerprint, query)
	if err != nil {
		return nil, fmt.Errorf("search highlights: %w", err)
	}
	defer rows.Close()
	var list []Highlight
	for rows.Next() {
		var h Highlight
		if err := rows.Scan(&h.ID, &h.Owner, &h.Pageno, &h.Color, &h.Text, &h.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}
