package repository

import (
	"strings"
	"testing"

	"ai-character-chat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

// newDryRunDB builds statements without a database connection so the
// generated SQL and bind variables can be inspected.
func newDryRunDB(t *testing.T) (*gorm.DB, *capturedStatement) {
	t.Helper()
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{
		DryRun:                 true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	captured := &capturedStatement{}
	err = db.Callback().Create().After("gorm:create").Register("capture_statement", func(tx *gorm.DB) {
		captured.sql = tx.Statement.SQL.String()
		captured.vars = tx.Statement.Vars
	})
	require.NoError(t, err)

	return db, captured
}

type capturedStatement struct {
	sql  string
	vars []interface{}
}

// columnValue returns the bind variable for the named column of a
// single-row INSERT.
func (c *capturedStatement) columnValue(t *testing.T, column string) interface{} {
	t.Helper()
	start := strings.Index(c.sql, "(")
	end := strings.Index(c.sql, ")")
	require.True(t, start >= 0 && end > start, "no column list in %q", c.sql)

	for i, col := range strings.Split(c.sql[start+1:end], ",") {
		if strings.Trim(col, "` \"") == column {
			require.Less(t, i, len(c.vars))
			return c.vars[i]
		}
	}
	t.Fatalf("column %q not in INSERT %q", column, c.sql)
	return nil
}

// A default-valued gorm tag on Complete would drop the zero value from the
// INSERT entirely, silently storing failed partial replies as complete.
func TestCreateInsertsIncompleteFlag(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewGormMessageRepository(db)

	err := repo.Create(&models.ChatMessage{
		CharacterID: 1,
		Content:     "half a reply",
		IsUser:      false,
		Complete:    false,
	})
	require.NoError(t, err)

	assert.Contains(t, captured.sql, "complete")
	assert.Equal(t, false, captured.columnValue(t, "complete"))
}

func TestCreateInsertsCompleteFlag(t *testing.T) {
	db, captured := newDryRunDB(t)
	repo := NewGormMessageRepository(db)

	err := repo.Create(&models.ChatMessage{
		CharacterID: 1,
		Content:     "full reply",
		IsUser:      false,
		Complete:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, true, captured.columnValue(t, "complete"))
}
