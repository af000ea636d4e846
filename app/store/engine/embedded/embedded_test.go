package embedded

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zebox/registry-mirror/app/store/engine"
)

func TestSQLite_Connect(t *testing.T) {
	dbPath := os.TempDir() + "/test.db"
	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	_ = os.Remove(dbPath) // clear if exist on previously tests
	db := Embedded{Path: dbPath}

	err := db.Connect(ctx)
	require.NoError(t, err)
	assert.NotNil(t, db.db)

	isExist, err := db.isTableExist(ctx, repoMirrorTable)
	assert.NoError(t, err)
	assert.True(t, isExist)

	isExist, err = db.isTableExist(ctx, orgMirrorTable)
	assert.NoError(t, err)
	assert.True(t, isExist)

	isExist, err = db.isTableExist(ctx, discoveredTable)
	assert.NoError(t, err)
	assert.True(t, isExist)

	isExist, err = db.isTableExist(ctx, repositoriesTable)
	assert.NoError(t, err)
	assert.True(t, isExist)

	assert.NoError(t, db.Close(ctx))
	assert.NoError(t, os.Remove(dbPath))

	t.Log("test with bad db path ")
	dbPath = os.TempDir() + "/unknown_path/test.db"
	db = Embedded{Path: dbPath}
	err = db.Connect(ctx)
	require.Error(t, err)
}

func TestSQlite_initTables(t *testing.T) {
	dbPath := os.TempDir() + "/test.db"
	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()
	db := Embedded{Path: dbPath}

	_ = os.Remove(dbPath)

	var err error
	db.db, err = sql.Open("sqlite3", db.Path)
	require.NoError(t, err)

	assert.NoError(t, db.initRepoMirrorTable(ctx))
	assert.NoError(t, db.initOrgMirrorTable(ctx))
	assert.NoError(t, db.initDiscoveredTable(ctx))
	assert.NoError(t, db.initRepositoriesTable(ctx))

	err = db.initTables(ctx)
	assert.Error(t, err)

	assert.NoError(t, db.Close(ctx))
	_ = os.Remove(dbPath)

}
func TestNewEmbedded(t *testing.T) {
	testPathToDB := "/var/test/store.db"
	embedded := NewEmbedded(testPathToDB)
	assert.Equal(t, embedded.Path, testPathToDB)
}

func TestFilterBuilder(t *testing.T) {

	filter := engine.QueryFilter{
		Range:   [2]int64{1, 10},
		Filters: map[string]interface{}{"q": "test", "is_enabled": 1},
		Sort:    []string{"id", "asc"},
	}

	{
		f := filtersBuilder(filter, "repository_name", "external_reference")
		checkWhere := "WHERE (repository_name LIKE '%test%' OR external_reference LIKE '%test%') AND (is_enabled = 1) ORDER BY id asc  LIMIT 9 OFFSET 1"
		assert.Equal(t, checkWhere, f.allClauses)
	}

	{
		filter.Filters = map[string]interface{}{"q": "test"}
		f1 := filtersBuilder(filter, "repository_name", "external_reference")
		checkWhere := "WHERE (repository_name LIKE '%test%' OR external_reference LIKE '%test%') ORDER BY id asc  LIMIT 9 OFFSET 1"
		assert.Equal(t, checkWhere, f1.allClauses)
	}
	{

		ids := []interface{}{float64(1019101756), float64(1334517373)}
		filter.Filters = map[string]interface{}{"q": "test", "is_enabled": 1}
		filter.Filters["ids"] = ids
		f2 := filtersBuilder(filter, "repository_name", "external_reference")
		checkWhere2 := "WHERE id IN (1019101756, 1334517373) AND (repository_name LIKE '%test%' OR external_reference LIKE '%test%') AND (is_enabled = 1) ORDER BY id asc  LIMIT 9 OFFSET 1"
		assert.Equal(t, checkWhere2, f2.allClauses)
	}

	{
		// test for sanitize key/value
		filter.Range = [2]int64{}
		filter.Filters = map[string]interface{}{"q select--": "test query WHERE LIKE JOIN search DELETE -- % = string ", "description": "-- LIKE AND SELECT clear_value WHERE OR"}
		f := filtersBuilder(filter, "repository_name", "external_reference")
		checkWhere := "WHERE (repository_name LIKE '%test querysearchstring %' OR external_reference LIKE '%test querysearchstring %') AND (description = 'ANDclear_valueOR') ORDER BY id asc "
		assert.Equal(t, checkWhere, f.allClauses)
	}

}

func TestEmbedded_updateFields(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	_, err := db.updateFields(ctx, repoMirrorTable, nil, map[string]interface{}{"sync_status": 1})
	assert.Error(t, err)

	_, err = db.updateFields(ctx, repoMirrorTable, map[string]interface{}{"id": 1}, nil)
	assert.Error(t, err)

	affected, err := db.updateFields(ctx, repoMirrorTable, map[string]interface{}{"id": 1}, map[string]interface{}{"sync_status": 1})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), affected) // no rows in an empty table
}

func TestEmbedded_idBounds(t *testing.T) {
	db := prepareTestDB(t)
	ctx := context.Background()

	minID, maxID, err := db.idBounds(ctx, repoMirrorTable)
	require.NoError(t, err)
	assert.Equal(t, int64(0), minID)
	assert.Equal(t, int64(0), maxID)
}

// prepareTestDB create new database in temporary directory of test run
func prepareTestDB(t *testing.T) *Embedded {
	dbPath := t.TempDir() + "/test.db"
	ctx, ctxCancel := context.WithCancel(context.Background())

	db := Embedded{Path: dbPath}
	err := db.Connect(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, db.Close(ctx))
		ctxCancel()
	})
	return &db
}
