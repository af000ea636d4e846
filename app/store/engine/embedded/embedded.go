package embedded

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"github.com/zebox/registry-mirror/app/store/engine"
)

const (
	repoMirrorTable   = "repo_mirror_config"
	orgMirrorTable    = "org_mirror_config"
	discoveredTable   = "org_mirror_repository"
	repositoriesTable = "repositories"
)

var (
	ErrTableAlreadyExist = errors.New("table already exist or has an error")
)

type Embedded struct {
	Path string `json:"path"`
	db   *sql.DB
}

type queryFilter struct {
	skipLimit  string // an offset and a limit params
	order      string // an order by clause
	in         string // in array values
	where      string // where without limit and offset params, return all items when math where clause
	allClauses string // raw where clause with skip and limit
}

func NewEmbedded(pathToDB string) *Embedded {
	return &Embedded{Path: pathToDB}
}

func (e *Embedded) Connect(ctx context.Context) (err error) {

	e.db, err = sql.Open("sqlite3", e.Path)
	if err != nil || e.Path == "" {
		return err
	}

	// close connection global using context
	go func() {
		<-ctx.Done()
		_ = e.db.Close()
	}()
	return e.initTables(ctx)

}

func (e *Embedded) initTables(ctx context.Context) (err error) {
	if err = e.initRepoMirrorTable(ctx); err != nil {
		err = multierror.Append(err, errors.Errorf("failed to create %s table", repoMirrorTable))
	}

	if err = e.initOrgMirrorTable(ctx); err != nil {
		err = multierror.Append(err, errors.Errorf("failed to create %s table", orgMirrorTable))
	}

	if err = e.initDiscoveredTable(ctx); err != nil {
		err = multierror.Append(err, errors.Errorf("failed to create %s table", discoveredTable))
	}

	if err = e.initRepositoriesTable(ctx); err != nil {
		err = multierror.Append(err, errors.Errorf("failed to create %s table", repositoriesTable))
	}

	// SQLite driver doesn't catch error if file doesn't exist and try to create a new database file.
	// But if path which passed to drive has invalid path name SQLite doesn't throw error too.
	// Because check for file exist required after first write transaction (such create table or other)
	if _, errStat := os.Stat(e.Path); os.IsNotExist(errStat) {
		return fmt.Errorf("[ERROR] database path is invalid '%s'. Can't create database file", e.Path)
	}
	return err
}

func (e *Embedded) initRepoMirrorTable(ctx context.Context) (err error) {
	if exist, err := e.isTableExist(ctx, repoMirrorTable); err != nil || exist {
		return ErrTableAlreadyExist
	}

	sqlText := fmt.Sprintf(`CREATE TABLE %s(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository_name TEXT NOT NULL CHECK(repository_name <> ''),
		is_enabled INTEGER,
		external_reference TEXT NOT NULL CHECK(external_reference <> ''),
		username BLOB,
		password BLOB,
		config TEXT,
		robot_login TEXT,
		root_rule TEXT,
		sync_interval INTEGER NOT NULL,
		sync_start_date INTEGER,
		sync_expiration_date INTEGER,
		sync_retries_remaining INTEGER,
		sync_status INTEGER,
		sync_transaction_id TEXT,
		last_sync_date INTEGER,
		skopeo_timeout INTEGER,
		org_mirror_id INTEGER,
		creation_date INTEGER,
		UNIQUE(repository_name))`, repoMirrorTable)

	_, err = e.db.Exec(sqlText)
	if err != nil {
		return multierror.Append(err, errors.Errorf("failed to create %s table", repoMirrorTable))
	}
	return nil
}

func (e *Embedded) initOrgMirrorTable(ctx context.Context) (err error) {
	if exist, err := e.isTableExist(ctx, orgMirrorTable); err != nil || exist {
		return ErrTableAlreadyExist
	}

	sqlText := fmt.Sprintf(`CREATE TABLE %s(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		organization TEXT NOT NULL CHECK(organization <> ''),
		is_enabled INTEGER,
		external_registry_type TEXT,
		external_registry_url TEXT NOT NULL CHECK(external_registry_url <> ''),
		external_namespace TEXT NOT NULL CHECK(external_namespace <> ''),
		username BLOB,
		password BLOB,
		config TEXT,
		robot_login TEXT,
		root_rule TEXT,
		repository_filters TEXT,
		visibility TEXT,
		delete_stale_repos INTEGER,
		sync_interval INTEGER NOT NULL,
		sync_start_date INTEGER,
		sync_expiration_date INTEGER,
		sync_retries_remaining INTEGER,
		sync_status INTEGER,
		sync_transaction_id TEXT,
		last_sync_date INTEGER,
		skopeo_timeout INTEGER,
		creation_date INTEGER,
		UNIQUE(organization))`, orgMirrorTable)

	_, err = e.db.Exec(sqlText)
	if err != nil {
		return multierror.Append(err, errors.Errorf("failed to create %s table", orgMirrorTable))
	}
	return nil
}

func (e *Embedded) initDiscoveredTable(ctx context.Context) (err error) {
	if exist, err := e.isTableExist(ctx, discoveredTable); err != nil || exist {
		return ErrTableAlreadyExist
	}

	sqlText := fmt.Sprintf(`CREATE TABLE %s(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		org_mirror_id INTEGER NOT NULL,
		repository_name TEXT NOT NULL CHECK(repository_name <> ''),
		external_name TEXT,
		repository_id INTEGER,
		sync_status INTEGER,
		sync_start_date INTEGER,
		sync_expiration_date INTEGER,
		sync_retries_remaining INTEGER,
		sync_transaction_id TEXT,
		status_message TEXT,
		creation_date INTEGER,
		last_sync_date INTEGER,
		UNIQUE(org_mirror_id,repository_name))`, discoveredTable)

	_, err = e.db.Exec(sqlText)
	if err != nil {
		return multierror.Append(err, errors.Errorf("failed to create %s table", discoveredTable))
	}
	return nil
}

func (e *Embedded) initRepositoriesTable(ctx context.Context) (err error) {
	if exist, err := e.isTableExist(ctx, repositoriesTable); err != nil || exist {
		return ErrTableAlreadyExist
	}

	sqlText := fmt.Sprintf(`CREATE TABLE %s(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository_name TEXT NOT NULL CHECK(repository_name <> ''),
		organization TEXT,
		visibility TEXT,
		description TEXT,
		creation_date INTEGER,
		UNIQUE(repository_name))`, repositoriesTable)

	_, err = e.db.Exec(sqlText)
	if err != nil {
		return multierror.Append(err, errors.Errorf("failed to create %s table", repositoriesTable))
	}
	return nil
}

func (e *Embedded) isTableExist(_ context.Context, tableName string) (exist bool, err error) {

	rows, err := e.db.Query(fmt.Sprintf("select DISTINCT tbl_name from sqlite_master where tbl_name = '%s'", tableName))
	if err != nil {
		return false, multierror.Append(err, errors.Errorf("can't check for %s table exist", tableName))
	}

	defer func() { _ = rows.Close() }()
	for rows.Next() {
		return true, nil
	}
	return false, nil
}

// Detach releases idle pool connections for the duration of fn. Image copy and
// catalog calls can run for hours, a pinned sqlite handle for that long starves
// the rest of the service.
func (e *Embedded) Detach(ctx context.Context, fn func(ctx context.Context) error) error {
	e.db.SetMaxIdleConns(0)
	defer e.db.SetMaxIdleConns(2) // restore database/sql default

	return fn(ctx)
}

func (e *Embedded) Close(_ context.Context) error {
	return e.db.Close()
}

// updateFields build and execute UPDATE query from 'fields' with every entry of
// 'conditionClause' in the where part and report affected rows number. All keys pass
// through sanitizer, values bind as placeholders. Keys apply in sorted order for get
// a deterministic statement text.
func (e *Embedded) updateFields(ctx context.Context, tableName string, conditionClause, fields map[string]interface{}) (affected int64, err error) {
	if len(fields) == 0 {
		return 0, errors.New("no fields defined for update")
	}
	if len(conditionClause) == 0 {
		return 0, errors.New("no condition defined for update")
	}

	var (
		setParts, whereParts []string
		args                 []interface{}
	)

	// values bind as placeholders and need no cleanup, only key names land in the statement text
	for _, k := range sortedKeys(fields) {
		key, _ := sanitizeKeyValue(k, nil)
		setParts = append(setParts, fmt.Sprintf("%s = ?", key))
		args = append(args, fields[k])
	}

	for _, k := range sortedKeys(conditionClause) {
		key, _ := sanitizeKeyValue(k, nil)
		whereParts = append(whereParts, fmt.Sprintf("%s = ?", key))
		args = append(args, conditionClause[k])
	}

	queryString := fmt.Sprintf("UPDATE %s SET %s WHERE %s", //nolint:gosec // keys sanitizing calling before
		tableName, strings.Join(setParts, ", "), strings.Join(whereParts, " AND "))

	stmt, err := e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to prepare update for %s table", tableName)
	}
	defer func() { _ = stmt.Close() }()

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to update %s table", tableName)
	}
	return res.RowsAffected()
}

// idBounds fetch min and max row id of a table, zeroes when table is empty
func (e *Embedded) idBounds(ctx context.Context, tableName string) (minID, maxID int64, err error) {
	queryString := fmt.Sprintf("SELECT COALESCE(MIN(id),0), COALESCE(MAX(id),0) FROM %s", tableName)

	rows, err := e.db.QueryContext(ctx, queryString)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "failed to get id bounds for %s table", tableName)
	}
	defer func() { _ = rows.Close() }()

	rows.Next()
	if err = rows.Scan(&minID, &maxID); err != nil {
		return 0, 0, errors.Wrapf(err, "failed scan id bounds for %s table", tableName)
	}
	return minID, maxID, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// filtersBuilder parse an engine filter values and build query filter for 'embedded' implementation
func filtersBuilder(filter engine.QueryFilter, fieldsName ...string) (f queryFilter) {

	var ids string

	// skip and limit statement build
	skip := ""
	if filter.Range[0] > 0 {
		skip = fmt.Sprintf("OFFSET %d", filter.Range[0])
		f.skipLimit = skip
	}

	if filter.Range[1] > 0 {
		limit := fmt.Sprintf(" LIMIT %d", filter.Range[1]-filter.Range[0])
		f.skipLimit = fmt.Sprintf("%s %s", limit, skip)
	}

	var (
		like             string
		strongConditions []string
	)

	// search query statement and parse queryFilter value
	for k, v := range filter.Filters {

		// check sql value for sql-injection
		k, v = sanitizeKeyValue(k, v)

		// build filter by list of IDs
		if k == "ids" {
			var stringIds []string
			for _, value := range v.([]interface{}) {
				stringIds = append(stringIds, castValueTypeToString(value))
			}
			ids = strings.Join(stringIds, ", ")
			f.in = fmt.Sprintf("id IN (%s)", ids)
			continue
		}

		if k == "q" {
			var likeConndition []string
			for _, val := range fieldsName {
				if reflect.TypeOf(v).Kind() == reflect.Int {
					likeConndition = append(likeConndition, fmt.Sprintf(" %s LIKE %d", val, v))
					continue
				}
				likeConndition = append(likeConndition, fmt.Sprintf("%s LIKE '%%%s%%'", val, v))
			}
			like = strings.Join(likeConndition, " OR ")
			continue
		}

		strongConditions = append(strongConditions, fmt.Sprintf("%s = %s", k, castValueTypeToString(v)))
	}

	var strongCondition string
	if len(strongConditions) > 0 {
		if like != "" {
			strongCondition = fmt.Sprintf("AND (%s)", strings.Join(strongConditions, " AND "))
		} else {
			strongCondition = fmt.Sprintf("(%s)", strings.Join(strongConditions, " AND "))
		}

	}

	if f.in != "" {
		f.allClauses = fmt.Sprintf("WHERE %s", f.in)
	}

	if like != "" {
		if f.allClauses == "" {
			f.allClauses = fmt.Sprintf("WHERE (%s)", like)
		} else {
			f.allClauses = fmt.Sprintf("%s AND (%s)", f.allClauses, like)
		}

	}

	if strongCondition != "" {
		if f.allClauses == "" {
			f.allClauses = fmt.Sprintf("WHERE %s", strongCondition)
		} else {
			f.allClauses = fmt.Sprintf("%s %s", f.allClauses, strongCondition)
		}
	}
	f.where = f.allClauses

	if filter.Sort == nil {
		filter.Sort = []string{"id", "asc"} // default sorting
	}

	f.order = fmt.Sprintf("ORDER BY %s %s ", filter.Sort[0], filter.Sort[1])

	f.allClauses = f.allClauses + " " + f.order + f.skipLimit

	return f
}

// getTotalRecordsExcludeRange return total number of records exclude range/skip clause for pagination support
// 		tableName - specify table name for search
//		filter - set of params for where clause in query
//		searchFields - define list of key fields using in where clause
func (e *Embedded) getTotalRecordsExcludeRange(tableName string, filter engine.QueryFilter, searchFields []string) int64 {
	filter.Range = [2]int64{0, 0} // clear skip/offset range

	f := filtersBuilder(filter, searchFields...)
	queryString := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", tableName, f.where)

	rows, err := e.db.Query(queryString)
	if err != nil {
		return 0
	}

	defer func() {
		_ = rows.Close()
	}()

	var recordsCounter int64
	rows.Next()
	if err = rows.Scan(&recordsCounter); err != nil {
		return 0
	}
	return recordsCounter
}

// castValueTypeToString will select appropriate type to formatting string
func castValueTypeToString(value interface{}) string {
	switch v := value.(type) {
	case string, digest.Digest, []uint8:
		return fmt.Sprintf("'%s'", v)
	case []string:
		if len(v) > 0 {
			return fmt.Sprintf("'%s'", v[0])
		}
	case int, int64:
		return fmt.Sprintf("%d", v)
	case float32, float64:
		return fmt.Sprintf("%.f", v)
	}
	return ""
}

// sanitizeKeyValue check key name and value for contain sql-injection code and cleanup ones
func sanitizeKeyValue(key string, value interface{}) (cleanKey string, cleanValue interface{}) {

	// query value input can be full text search string with white spaces and contain substring either 'OR' or 'AND'
	// because in this regexp white spaces, substrings contain 'OR' or/and 'AND' and not will be replaced
	// 'OR', 'AND' will replace if they wrap of white spaces
	var queryValueRegExp = regexp.MustCompile(`(?i)[\t\r\n]|(--)|(%)|\s{2,}|(\s(OR|AND|JOIN|LEFT|RIGHT|LIKE)\s)|\)|\(|'|"|=|\*|SELECT|UPDATE|INSERT|DELETE|LIKE|WHERE|ALTER|UNION`)

	// same regexp as above but include trim white spaces between words of string for ke or value
	var keyNameValueRegExp = regexp.MustCompile(`(?i)[\t\r\n]|(--)|\s+|(%)|(\sOR\s|\sAND\s|\)|\(|'|"|=|\*|SELECT|UPDATE|INSERT|DELETE|LIKE|WHERE|ALTER|UNION)`)

	// search sql-injection code in key name
	cleanKey = key
	for {
		isPatternDetected := false
		for _, match := range keyNameValueRegExp.FindAllString(cleanKey, -1) {
			cleanKey = strings.Replace(cleanKey, match, "", -1)
			isPatternDetected = true
		}
		if !isPatternDetected {
			break
		}
	}

	// search sql-injection code in value
	cleanValue = value
	switch val := value.(type) {
	case string:
		{

			tmpString := val

			for {
				isPatternDetected := false

				// full text query value string sanitizing
				if cleanKey == "q" {
					for _, match := range queryValueRegExp.FindAllString(tmpString, -1) {
						tmpString = strings.Replace(tmpString, match, "", -1)
						isPatternDetected = true
					}

					// sanitize a filter value
				} else {
					for _, match := range keyNameValueRegExp.FindAllString(tmpString, -1) {
						tmpString = strings.Replace(tmpString, match, "", -1)
						isPatternDetected = true
					}
				}

				if !isPatternDetected {
					cleanValue = tmpString
					break
				}
			}
		}
	}

	return cleanKey, cleanValue
}
