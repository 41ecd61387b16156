package database

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garrison-chat/garrison/internal/types"
)

func TestTranslateErr(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, translateErr(nil, "get user", types.ErrCodeUserNotFound))
	})

	t.Run("no rows maps to the given code", func(t *testing.T) {
		err := translateErr(sql.ErrNoRows, "get user", types.ErrCodeUserNotFound)
		assert.Equal(t, types.ErrCodeUserNotFound, types.CodeOf(err))

		err = translateErr(sql.ErrNoRows, "get barrack", types.ErrCodeNotFound)
		assert.Equal(t, types.ErrCodeNotFound, types.CodeOf(err))
	})

	t.Run("unique violation maps to duplicate entry", func(t *testing.T) {
		pqErr := &pq.Error{Code: "23505"}
		err := translateErr(pqErr, "create user", types.ErrCodeUserNotFound)
		assert.Equal(t, types.ErrCodeDuplicateEntry, types.CodeOf(err))
	})

	t.Run("anything else is a database error", func(t *testing.T) {
		err := translateErr(errors.New("connection reset"), "get user", types.ErrCodeUserNotFound)
		assert.Equal(t, types.ErrCodeDatabase, types.CodeOf(err))
	})
}

func TestMigrationsEmbed(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}
