package embedded

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

// column list shared by every select over the repo mirror table, scan order in
// scanRepoMirror must follow it
const repoMirrorFields = `id, repository_name, is_enabled, external_reference, username, password, config,
	robot_login, root_rule, sync_interval, sync_start_date, sync_expiration_date, sync_retries_remaining,
	sync_status, sync_transaction_id, last_sync_date, skopeo_timeout, org_mirror_id, creation_date`

// CreateRepoMirror create a new repository mirror config record
func (e *Embedded) CreateRepoMirror(ctx context.Context, m *store.RepoMirror) (err error) {

	var emptyParams []string

	// check required parameters filled
	if m.RepositoryName == "" {
		emptyParams = append(emptyParams, "RepositoryName")
	}
	if m.ExternalReference == "" {
		emptyParams = append(emptyParams, "ExternalReference")
	}
	if m.SyncInterval <= 0 {
		emptyParams = append(emptyParams, "SyncInterval")
	}
	if len(emptyParams) > 0 {
		return fmt.Errorf("required mirror fields not set: %s", strings.Join(emptyParams, ", "))
	}

	rule, err := store.MarshalRule(m.Rule)
	if err != nil {
		return errors.Wrap(err, "failed to serialize mirror rule")
	}

	config, err := json.Marshal(m.Config)
	if err != nil {
		return errors.Wrap(err, "failed to serialize mirror config")
	}

	createSQL := fmt.Sprintf(`INSERT INTO %s (
		repository_name,
		is_enabled,
		external_reference,
		username,
		password,
		config,
		robot_login,
		root_rule,
		sync_interval,
		sync_start_date,
		sync_expiration_date,
		sync_retries_remaining,
		sync_status,
		sync_transaction_id,
		last_sync_date,
		skopeo_timeout,
		org_mirror_id,
		creation_date
	) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, repoMirrorTable)
	stmt, err := e.db.PrepareContext(ctx, createSQL)
	if err != nil {
		return multierror.Append(err, errors.New("failed to add new repo mirror"))
	}
	defer func() { _ = stmt.Close() }()
	result, err := stmt.ExecContext(ctx, m.RepositoryName, m.IsEnabled, m.ExternalReference, m.Username, m.Password,
		string(config), m.RobotLogin, rule, m.SyncInterval, m.SyncStartDate, m.SyncExpirationDate,
		m.SyncRetriesRemaining, m.SyncStatus, m.SyncTransactionID, m.LastSyncDate, m.SkopeoTimeout,
		m.OrgMirrorID, m.CreationDate)
	if err != nil {
		return multierror.Append(err, errors.New("failed to add new repo mirror"))
	}

	id, err := result.LastInsertId()
	if err == nil {
		m.ID = id
	}
	return err
}

// GetRepoMirror get repo mirror data by ID
func (e *Embedded) GetRepoMirror(ctx context.Context, id int64) (m store.RepoMirror, err error) {

	queryString := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", repoMirrorFields, repoMirrorTable)
	stmt, err := e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return m, errors.Wrap(err, "failed to prepare query for get repo mirror data")
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.QueryContext(ctx, id)
	if err != nil {
		return m, errors.Wrap(err, "failed to get repo mirror data")
	}
	defer func() { _ = rows.Close() }()

	emptyResult := true
	for rows.Next() {
		if m, err = scanRepoMirror(rows); err != nil {
			return m, errors.Wrap(err, "failed scan repo mirror data")
		}
		emptyResult = false
	}
	if emptyResult {
		return m, engine.ErrNotFound
	}
	return m, nil
}

// FindRepoMirrors fetch list of repo mirrors by filter values
func (e *Embedded) FindRepoMirrors(ctx context.Context, filter engine.QueryFilter) (mirrors engine.ListResponse, err error) {
	f := filtersBuilder(filter, "repository_name", "external_reference")
	queryString := fmt.Sprintf("SELECT %s FROM %s %s", repoMirrorFields, repoMirrorTable, f.allClauses) //nolint:gosec // query sanitizing calling before

	// avoid error shadowed
	var (
		stmt *sql.Stmt
		rows *sql.Rows
	)
	stmt, err = e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return mirrors, err
	}

	rows, err = stmt.QueryContext(ctx)
	if err != nil {
		return mirrors, errors.Wrap(err, "failed to get repo mirrors list")
	}
	defer func() {
		_ = rows.Close()
	}()

	if mirrors.Total = e.getTotalRecordsExcludeRange(repoMirrorTable, filter, []string{"repository_name", "external_reference"}); mirrors.Total == 0 {
		return mirrors, nil // may be error handler catch
	}
	mirrors.Data = []interface{}{}
	for rows.Next() {
		var m store.RepoMirror
		if m, err = scanRepoMirror(rows); err != nil {
			return mirrors, errors.Wrap(err, "failed scan repo mirror data")
		}
		mirrors.Data = append(mirrors.Data, m)
	}

	return mirrors, nil
}

// UpdateRepoMirror update mirror configuration fields. Scheduling state (status,
// retries, expiration, transaction id) is out of scope here, it changes only with
// UpdateRepoMirrorFields under a compare-and-swap condition.
func (e *Embedded) UpdateRepoMirror(ctx context.Context, m store.RepoMirror) (err error) {

	rule, err := store.MarshalRule(m.Rule)
	if err != nil {
		return errors.Wrap(err, "failed to serialize mirror rule")
	}

	config, err := json.Marshal(m.Config)
	if err != nil {
		return errors.Wrap(err, "failed to serialize mirror config")
	}

	var res sql.Result
	if len(m.Username) > 0 || len(m.Password) > 0 {
		res, err = e.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_enabled=?, external_reference=?, username=?, password=?,
			config=?, robot_login=?, root_rule=?, sync_interval=?, skopeo_timeout=? WHERE id = ?`, repoMirrorTable),
			m.IsEnabled, m.ExternalReference, m.Username, m.Password, string(config), m.RobotLogin, rule,
			m.SyncInterval, m.SkopeoTimeout, m.ID)
	} else {
		// skip a credentials update when updating values are empty
		res, err = e.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_enabled=?, external_reference=?,
			config=?, robot_login=?, root_rule=?, sync_interval=?, skopeo_timeout=? WHERE id = ?`, repoMirrorTable),
			m.IsEnabled, m.ExternalReference, string(config), m.RobotLogin, rule, m.SyncInterval, m.SkopeoTimeout, m.ID)
	}

	if err != nil {
		return errors.Wrap(err, "failed to update repo mirror data")
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return engine.ErrNotFound
	}

	return err
}

// UpdateRepoMirrorFields apply raw field values to rows matched by every entry of conditionClause
func (e *Embedded) UpdateRepoMirrorFields(ctx context.Context, conditionClause, fields map[string]interface{}) (affected int64, err error) {
	return e.updateFields(ctx, repoMirrorTable, conditionClause, fields)
}

// DeleteRepoMirror delete repo mirror record by ID
func (e *Embedded) DeleteRepoMirror(ctx context.Context, id int64) (err error) {
	res, err := e.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", repoMirrorTable), id)
	if err != nil {
		return errors.Wrapf(err, "failed execute query for repo mirror delete")
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return engine.ErrNotFound
	}

	return err
}

// EligibleRepoMirrors fetch enabled mirrors ready for a sync pass: rows with an
// immediate sync request, rows due by schedule and rows whose previous claim expired.
// Rows with zero sync_start_date have no next run scheduled and never match.
func (e *Embedded) EligibleRepoMirrors(ctx context.Context, now, afterID, limit int64) (mirrors []store.RepoMirror, err error) {
	queryString := fmt.Sprintf(`SELECT %s FROM %s
		WHERE is_enabled = 1 AND id > ? AND (
			(sync_status = ? AND sync_expiration_date = 0)
			OR (sync_start_date > 0 AND sync_start_date <= ? AND sync_retries_remaining > 0 AND sync_status != ? AND sync_expiration_date = 0)
			OR (sync_start_date > 0 AND sync_start_date <= ? AND sync_retries_remaining > 0 AND sync_status = ? AND sync_expiration_date <= ?)
		)
		ORDER BY sync_start_date ASC LIMIT ?`, repoMirrorFields, repoMirrorTable)

	stmt, err := e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare query for eligible repo mirrors")
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.QueryContext(ctx, afterID,
		store.SyncStatusSyncNow, now, store.SyncStatusSyncing, now, store.SyncStatusSyncing, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get eligible repo mirrors")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		m, errScan := scanRepoMirror(rows)
		if errScan != nil {
			return nil, errors.Wrap(errScan, "failed scan repo mirror data")
		}
		mirrors = append(mirrors, m)
	}
	return mirrors, nil
}

// RepoMirrorIDBounds fetch min and max row id for candidate pagination
func (e *Embedded) RepoMirrorIDBounds(ctx context.Context) (minID, maxID int64, err error) {
	return e.idBounds(ctx, repoMirrorTable)
}

func scanRepoMirror(rows *sql.Rows) (m store.RepoMirror, err error) {
	var rule, config string

	err = rows.Scan(&m.ID, &m.RepositoryName, &m.IsEnabled, &m.ExternalReference, (*[]byte)(&m.Username), (*[]byte)(&m.Password),
		&config, &m.RobotLogin, &rule, &m.SyncInterval, &m.SyncStartDate, &m.SyncExpirationDate,
		&m.SyncRetriesRemaining, &m.SyncStatus, &m.SyncTransactionID, &m.LastSyncDate, &m.SkopeoTimeout,
		&m.OrgMirrorID, &m.CreationDate)
	if err != nil {
		return m, err
	}

	if m.Rule, err = store.UnmarshalRule(rule); err != nil {
		return m, errors.Wrap(err, "failed to restore mirror rule")
	}
	if config != "" {
		if err = json.Unmarshal([]byte(config), &m.Config); err != nil {
			return m, errors.Wrap(err, "failed to restore mirror config")
		}
	}
	return m, nil
}
