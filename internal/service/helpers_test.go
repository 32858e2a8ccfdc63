package service

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/aabhi25/chronalive/internal/models"
)

// txStub hands out real transactions backed by sqlmock so services can
// commit or roll back; repository stubs ignore the exec argument.
type txStub struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxStub(t *testing.T) *txStub {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txStub{db: sqlxdb, mock: mock}
}

func (s *txStub) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	s.mock.ExpectBegin()
	s.mock.ExpectCommit()
	s.mock.ExpectRollback()
	return s.db.BeginTxx(ctx, opts)
}

type auditRecorder struct {
	logs []models.AuditLog
}

func (r *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, *log)
	return nil
}
