package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"marketplace/internal/pkg/config"
)

type uniqueThing struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"size:32;uniqueIndex"`
}

func TestOpenSqliteAndDuplicateTranslation(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: "file:dbtest?mode=memory&cache=shared", MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db, &uniqueThing{}))
	require.NoError(t, db.Create(&uniqueThing{Code: "A"}).Error)

	err = db.Create(&uniqueThing{Code: "A"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm translated", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), true},
		{"mysql 1062", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x' for key 'uk'"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, false},
		{"sqlite text", errors.New("UNIQUE constraint failed: reviews.dedupe_key"), true},
		{"postgres text", errors.New(`ERROR: duplicate key value violates unique constraint "uk" (SQLSTATE 23505)`), true},
		{"other", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateKey(tt.err))
		})
	}
}
