package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
)

func TestTransactor(t *testing.T) {
	ctx := context.Background()
	insert := func(exec core.DBExecutor) error {
		_, err := exec.ExecContext(ctx, "INSERT INTO audit_log (action) VALUES ($1)", "course.archived")
		return err
	}

	t.Run("commits", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO audit_log").WithArgs("course.archived").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, NewTransactor(db).RunInTx(ctx, insert))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		errBoom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO audit_log").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err = NewTransactor(db).RunInTx(ctx, func(exec core.DBExecutor) error {
			if err := insert(exec); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errors.New("deadlock detected"))
		mock.ExpectRollback().WillReturnError(errors.New("connection reset"))

		err = NewTransactor(db).RunInTx(ctx, insert)
		assert.True(t, core.IsShutdown(err), err)
		assert.EqualError(t, err, "rolling back after deadlock detected: connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))
		err = NewTransactor(db).RunInTx(ctx, insert)
		assert.EqualError(t, err, "beginning transaction: too many connections")
	})
}
