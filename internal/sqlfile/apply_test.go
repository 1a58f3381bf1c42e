package sqlfile

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/socialhub/internal/testutil"
)

func newApplier(t *testing.T) (*Applier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewApplier(db, testutil.MakeNoopLogger()), mock
}

func TestApplier_Apply(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		setup   func(sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:   "commits on success",
			script: "CREATE TABLE t (id INT);",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE t (id INT);")).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
		},
		{
			name:   "rolls back on failure",
			script: "DROP TABLE missing;",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("DROP TABLE missing;")).
					WillReturnError(assert.AnError)
				mock.ExpectRollback()
			},
			wantErr: assert.AnError,
		},
		{
			name:    "empty script",
			script:  "  \n\t",
			setup:   func(sqlmock.Sqlmock) {},
			wantErr: ErrEmptyScript,
		},
		{
			name:   "begin fails",
			script: "SELECT 1;",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(assert.AnError)
			},
			wantErr: assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier, mock := newApplier(t)
			tt.setup(mock)

			err := applier.Apply(context.Background(), tt.script)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestApplier_ApplyFile(t *testing.T) {
	applier, mock := newApplier(t)
	path := filepath.Join(t.TempDir(), "seed.sql")
	require.NoError(t, os.WriteFile(path, []byte("INSERT INTO t VALUES (1);"), 0o600))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO t VALUES (1);")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, applier.ApplyFile(context.Background(), path))
}

func TestApplier_ApplyFile_Missing(t *testing.T) {
	applier, _ := newApplier(t)

	err := applier.ApplyFile(context.Background(), filepath.Join(t.TempDir(), "nope.sql"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
