package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/stargazer/internal/domain/model"
	"github.com/ericfisherdev/stargazer/internal/domain/port/driven"
)

func newMockRepo(t *testing.T) (*RepositoryRepo, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewRepositoryRepo(NewDBWithPool(mock, "postgres://localhost/test")), mock
}

func sampleRepo() model.Repository {
	id := int64(10270250)
	desc := "A JavaScript library"
	lang := "JavaScript"
	created := time.Date(2013, 5, 24, 16, 15, 54, 0, time.UTC)
	updated := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	return model.Repository{
		GitHubID:        &id,
		FullName:        "facebook/react",
		Name:            "react",
		Owner:           "facebook",
		URL:             "https://github.com/facebook/react",
		Description:     &desc,
		PrimaryLanguage: &lang,
		CreatedAt:       &created,
		UpdatedAt:       &updated,
		LastCrawledAt:   time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC),
	}
}

func upsertArgs(repo model.Repository) []any {
	return []any{
		repo.GitHubID, repo.FullName, repo.Name, repo.Owner, repo.URL, repo.Description,
		repo.PrimaryLanguage, repo.CreatedAt, repo.UpdatedAt, repo.LastCrawledAt,
	}
}

func TestRepositoryRepo_UpsertRepository(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	r := sampleRepo()

	mock.ExpectQuery(`INSERT INTO repositories .* ON CONFLICT \(full_name\) DO UPDATE SET\s+github_id = COALESCE`).
		WithArgs(upsertArgs(r)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := repo.UpsertRepository(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRepo_AppendSnapshot_TruncatesToDay(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO stars_snapshots").
		WithArgs(int64(42), time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), 230000).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.AppendSnapshot(context.Background(), model.StarSnapshot{
		RepositoryID: 42,
		SnapshotDate: time.Date(2026, 10, 17, 23, 59, 0, 0, time.UTC),
		Stargazers:   230000,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRepo_RecordObservation_CommitsBothWrites(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	r := sampleRepo()
	day := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO repositories").
		WithArgs(upsertArgs(r)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO stars_snapshots").
		WithArgs(int64(7), time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), 1234).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	id, err := repo.RecordObservation(context.Background(), r, 1234, day)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRepo_RecordObservation_RollsBackOnSnapshotFailure(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	r := sampleRepo()
	boom := errors.New("foreign key violation")

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO repositories").
		WithArgs(upsertArgs(r)...).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO stars_snapshots").
		WithArgs(int64(7), pgxmock.AnyArg(), 1).
		WillReturnError(boom)
	mock.ExpectRollback()

	_, err := repo.RecordObservation(context.Background(), r, 1, r.LastCrawledAt)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRepo_RecordObservation_RollsBackOnUpsertFailure(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	r := sampleRepo()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO repositories").
		WithArgs(upsertArgs(r)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.RecordObservation(context.Background(), r, 1, r.LastCrawledAt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert repository facebook/react")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRepo_GetByFullName_NotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT id, github_id").
		WithArgs("nobody/nothing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByFullName(context.Background(), "nobody/nothing")
	assert.ErrorIs(t, err, driven.ErrRepoNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRepo_GetByFullName(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepo(t)
	r := sampleRepo()

	mock.ExpectQuery("SELECT id, github_id").
		WithArgs("facebook/react").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "github_id", "full_name", "name", "owner", "url", "description",
			"primary_language", "created_at", "updated_at", "last_crawled_at",
		}).AddRow(
			int64(42), r.GitHubID, r.FullName, r.Name, r.Owner, r.URL, r.Description,
			r.PrimaryLanguage, r.CreatedAt, r.UpdatedAt, r.LastCrawledAt,
		))

	got, err := repo.GetByFullName(context.Background(), "facebook/react")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "facebook/react", got.FullName)
	require.NotNil(t, got.Description)
	assert.Equal(t, "A JavaScript library", *got.Description)
	require.NoError(t, mock.ExpectationsWereMet())
}
