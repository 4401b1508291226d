package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/scholar-search/pkg/postgres"
	"github.com/DATA-DOG/go-sqlmock"
)

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.json")
	content := `[
		{"title": "A", "pub_url": "u1", "category": "Finance", "co_authors": [{"name": "Jane"}]},
		{"title": "B", "pub_url": "u1"}
	]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	src := File(path)
	docs, err := src.Documents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].Category[0] != "Finance" || docs[0].CoAuthors[0].Name != "Jane" {
		t.Errorf("doc = %+v", docs[0])
	}
	if src.Name() != "file:"+path {
		t.Errorf("Name = %q", src.Name())
	}
}

func TestFileSourceMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.json")).Documents(context.Background())
	if !apperrors.Is(err, apperrors.ErrArtifactNotFound) {
		t.Errorf("err = %v", err)
	}
}

func newMockSource(t *testing.T) (*PostgresSource, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return Postgres(postgres.FromDB(db)), mock
}

var columns = []string{"title", "pub_url", "date", "cu_author", "cu_author_url", "abstract", "category", "co_authors"}

func TestPostgresSource(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery("SELECT title, COALESCE\\(pub_url, ''\\)").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("Corporate Governance", "https://x/1", "2020", "Piotr Lis", "https://x/lis", "Boards.",
				[]byte(`["Finance"]`), []byte(`[{"name":"Jane Doe"}]`)).
			AddRow("No URL", "", "", "", "", "", []byte(`"Economics"`), []byte(`[]`)))

	docs, err := src.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d", len(docs))
	}
	if docs[0].CUAuthor != "Piotr Lis" || docs[0].CoAuthors[0].Name != "Jane Doe" || docs[0].Category[0] != "Finance" {
		t.Errorf("doc[0] = %+v", docs[0])
	}
	if docs[1].PubURL != "" || docs[1].Category[0] != "Economics" {
		t.Errorf("doc[1] = %+v", docs[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresSourceQueryError(t *testing.T) {
	src, mock := newMockSource(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT title").WillReturnError(boom)
	if _, err := src.Documents(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestPostgresSourceBadJSON(t *testing.T) {
	src, mock := newMockSource(t)
	mock.ExpectQuery("SELECT title").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("T", "u", "", "", "", "", []byte(`{bad`), []byte(`[]`)))
	if _, err := src.Documents(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
