package source

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/scholar-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
)

// PostgresSource reads every row of the publications table in insertion
// order. A NULL pub_url becomes the empty string.
type PostgresSource struct {
	db *postgres.Client
}

func Postgres(db *postgres.Client) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Name() string { return "postgres:publications" }

const selectPublications = `
SELECT title, COALESCE(pub_url, ''), date, cu_author, cu_author_url, abstract, category, co_authors
FROM publications
ORDER BY id`

func (s *PostgresSource) Documents(ctx context.Context) ([]index.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx, selectPublications)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	docs := make([]index.Document, 0, 1024)
	for rows.Next() {
		var (
			d          index.Document
			categories []byte
			coAuthors  []byte
		)
		if err := rows.Scan(
			&d.Title, &d.PubURL, &d.Date, &d.CUAuthor, &d.CUAuthorURL, &d.Abstract,
			&categories, &coAuthors,
		); err != nil {
			return nil, fmt.Errorf("scanning publication row: %w", err)
		}
		if len(categories) > 0 {
			if err := json.Unmarshal(categories, &d.Category); err != nil {
				return nil, fmt.Errorf("decoding category of %q: %w", d.PubURL, err)
			}
		}
		if len(coAuthors) > 0 {
			if err := json.Unmarshal(coAuthors, &d.CoAuthors); err != nil {
				return nil, fmt.Errorf("decoding co_authors of %q: %w", d.PubURL, err)
			}
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publications: %w", err)
	}
	return docs, nil
}
