package tags

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestGetOrCreate_Inserts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+tags\s*\(tag_name\)\s*VALUES\s*\(\$1\)\s*ON\s+CONFLICT\s*\(tag_name\)\s*DO\s+NOTHING\s*RETURNING\s+tag_id\s*$`

	mock.ExpectQuery(q).
		WithArgs("mechanical").
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}).AddRow(int64(1)))

	id, err := repo.GetOrCreate(context.Background(), "mechanical")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if id != 1 {
		t.Fatalf("unexpected id: %d", id)
	}
}

func TestGetOrCreate_ExistingRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+tags`).
		WithArgs("programming").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`(?s)^SELECT\s+tag_id\s+FROM\s+tags\s+WHERE\s+tag_name\s*=\s*\$1\s*$`).
		WithArgs("programming").
		WillReturnRows(sqlmock.NewRows([]string{"tag_id"}).AddRow(int64(2)))

	id, err := repo.GetOrCreate(context.Background(), "programming")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if id != 2 {
		t.Fatalf("unexpected id: %d", id)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+tag_name\s+FROM\s+tags\s+ORDER\s+BY\s+tag_name\s*$`).
		WillReturnRows(sqlmock.NewRows([]string{"tag_name"}).
			AddRow("mechanical").AddRow("outreach"))

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0] != "mechanical" {
		t.Fatalf("unexpected tags: %v", got)
	}
}
