package repo_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-agent/internal/repo"
)

func TestRunRepository_EnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS agent_runs`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.NewRunRepository(db).EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_RecordRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	run := repo.Run{
		ID:           "6f1c1a52-0d5e-4b43-9b7e-3f6d3c0b9a11",
		Category:     "news_request",
		SourceLang:   "en",
		TargetLang:   "de",
		FromDate:     "2025-10-06",
		ToDate:       "2025-10-12",
		ArticleCount: 4,
		Status:       "ok",
		Duration:     1500 * time.Millisecond,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO agent_runs`)).
		WithArgs(run.ID, "news_request", "en", "de", "2025-10-06", "2025-10-12", 4, "ok", "", int64(1500)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.NewRunRepository(db).RecordRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_RecordRunError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`INSERT INTO agent_runs`).WillReturnError(errors.New("connection reset"))

	err = repo.NewRunRepository(db).RecordRun(context.Background(), repo.Run{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RecordRun")
}

func TestRunRepository_RecentRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	created := time.Date(2025, time.October, 15, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "category", "source_lang", "target_lang", "from_date", "to_date",
		"article_count", "status", "error", "duration_ms", "created_at",
	}).
		AddRow("a", "news_request", "en", "ig", "2025-10-08", "2025-10-15", 10, "ok", "", int64(2300), created).
		AddRow("b", "conversational", "", "", "", "", 0, "ok", "", int64(400), created.Add(-time.Minute))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM agent_runs`)).
		WithArgs(5).
		WillReturnRows(rows)

	got, err := repo.NewRunRepository(db).RecentRuns(context.Background(), 5)
	require.NoError(t, err)

	want := []repo.Run{
		{ID: "a", Category: "news_request", SourceLang: "en", TargetLang: "ig", FromDate: "2025-10-08", ToDate: "2025-10-15",
			ArticleCount: 10, Status: "ok", Duration: 2300 * time.Millisecond, CreatedAt: created},
		{ID: "b", Category: "conversational", Status: "ok", Duration: 400 * time.Millisecond, CreatedAt: created.Add(-time.Minute)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_RecentRunsDefaultLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM agent_runs`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := repo.NewRunRepository(db).RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunRepository_PruneRuns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cutoff := time.Date(2025, time.September, 15, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM agent_runs WHERE created_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.NewRunRepository(db).PruneRuns(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepository_PruneRunsError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM agent_runs`)).
		WillReturnError(errors.New("relation does not exist"))

	_, err = repo.NewRunRepository(db).PruneRuns(context.Background(), time.Now())
	assert.ErrorContains(t, err, "PruneRuns")
}
