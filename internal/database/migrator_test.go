package database_test

import (
	"context"
	"testing"

	"floorplan-render-backend/internal/database"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationNames(t *testing.T) {
	names, err := database.MigrationNames()
	require.NoError(t, err)

	assert.Equal(t, []string{"001_create_render_tables.sql", "002_create_render_events.sql"}, names)
}

func TestMigrator_Run(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))

	// First migration already applied.
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schema_migrations").
		WithArgs("001_create_render_tables.sql").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schema_migrations").
		WithArgs("002_create_render_events.sql").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS render_events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("002_create_render_events.sql").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	m := database.NewMigratorWithDB(db, zap.NewNop())
	require.NoError(t, m.Run(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrator_RollsBackFailedMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schema_migrations").
		WithArgs("001_create_render_tables.sql").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS projects").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	m := database.NewMigratorWithDB(db, zap.NewNop())
	err = m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_create_render_tables.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
