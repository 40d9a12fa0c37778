package projects

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
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

	q := `(?s)^\s*INSERT\s+INTO\s+projects\s*\(project_name\)\s*VALUES\s*\(\$1\)\s*ON\s+CONFLICT\s*\(project_name\)\s*DO\s+NOTHING\s*RETURNING\s+project_id\s*$`

	mock.ExpectQuery(q).
		WithArgs("Drivetrain v2").
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(int64(1)))

	id, err := repo.GetOrCreate(context.Background(), "Drivetrain v2")
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

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+projects`).
		WithArgs("Autonomous").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`(?s)^SELECT\s+project_id\s+FROM\s+projects\s+WHERE\s+project_name\s*=\s*\$1\s*$`).
		WithArgs("Autonomous").
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow(int64(9)))

	id, err := repo.GetOrCreate(context.Background(), "Autonomous")
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if id != 9 {
		t.Fatalf("unexpected id: %d", id)
	}
}

func TestGetOrCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+projects`).
		WithArgs("Autonomous").
		WillReturnError(errors.New("db down"))

	_, err := repo.GetOrCreate(context.Background(), "Autonomous")
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+project_name\s+FROM\s+projects\s+ORDER\s+BY\s+project_name\s*$`).
		WillReturnRows(sqlmock.NewRows([]string{"project_name"}).
			AddRow("Autonomous").AddRow("Drivetrain v2"))

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[0] != "Autonomous" || got[1] != "Drivetrain v2" {
		t.Fatalf("unexpected projects: %v", got)
	}
}

func TestLinkStatus(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*INSERT\s+INTO\s+project_status\s*\(project_id,\s*status_id\)\s*SELECT\s+\$1,\s*status_id\s+FROM\s+status_\s+WHERE\s+status_name\s*=\s*\$2\s*ON\s+CONFLICT\s+DO\s+NOTHING\s*$`

	mock.ExpectExec(q).
		WithArgs(int64(4), "active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.LinkStatus(context.Background(), 4, "active"); err != nil {
		t.Fatalf("LinkStatus error: %v", err)
	}
}
