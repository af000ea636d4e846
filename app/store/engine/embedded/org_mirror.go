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

const orgMirrorFields = `id, organization, is_enabled, external_registry_type, external_registry_url,
	external_namespace, username, password, config, robot_login, root_rule, repository_filters,
	visibility, delete_stale_repos, sync_interval, sync_start_date, sync_expiration_date,
	sync_retries_remaining, sync_status, sync_transaction_id, last_sync_date, skopeo_timeout, creation_date`

// CreateOrgMirror create a new organization mirror config record
func (e *Embedded) CreateOrgMirror(ctx context.Context, m *store.OrgMirror) (err error) {

	var emptyParams []string

	// check required parameters filled
	if m.Organization == "" {
		emptyParams = append(emptyParams, "Organization")
	}
	if m.ExternalRegistryURL == "" {
		emptyParams = append(emptyParams, "ExternalRegistryURL")
	}
	if m.ExternalNamespace == "" {
		emptyParams = append(emptyParams, "ExternalNamespace")
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

	filters, err := json.Marshal(m.RepositoryFilters)
	if err != nil {
		return errors.Wrap(err, "failed to serialize repository filters")
	}

	createSQL := fmt.Sprintf(`INSERT INTO %s (
		organization,
		is_enabled,
		external_registry_type,
		external_registry_url,
		external_namespace,
		username,
		password,
		config,
		robot_login,
		root_rule,
		repository_filters,
		visibility,
		delete_stale_repos,
		sync_interval,
		sync_start_date,
		sync_expiration_date,
		sync_retries_remaining,
		sync_status,
		sync_transaction_id,
		last_sync_date,
		skopeo_timeout,
		creation_date
	) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, orgMirrorTable)
	stmt, err := e.db.PrepareContext(ctx, createSQL)
	if err != nil {
		return multierror.Append(err, errors.New("failed to add new org mirror"))
	}
	defer func() { _ = stmt.Close() }()
	result, err := stmt.ExecContext(ctx, m.Organization, m.IsEnabled, string(m.ExternalRegistryType),
		m.ExternalRegistryURL, m.ExternalNamespace, m.Username, m.Password, string(config), m.RobotLogin,
		rule, string(filters), m.Visibility, m.DeleteStaleRepos, m.SyncInterval, m.SyncStartDate,
		m.SyncExpirationDate, m.SyncRetriesRemaining, m.SyncStatus, m.SyncTransactionID, m.LastSyncDate,
		m.SkopeoTimeout, m.CreationDate)
	if err != nil {
		return multierror.Append(err, errors.New("failed to add new org mirror"))
	}

	id, err := result.LastInsertId()
	if err == nil {
		m.ID = id
	}
	return err
}

// GetOrgMirror get org mirror data by ID
func (e *Embedded) GetOrgMirror(ctx context.Context, id int64) (m store.OrgMirror, err error) {

	queryString := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", orgMirrorFields, orgMirrorTable)
	stmt, err := e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return m, errors.Wrap(err, "failed to prepare query for get org mirror data")
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.QueryContext(ctx, id)
	if err != nil {
		return m, errors.Wrap(err, "failed to get org mirror data")
	}
	defer func() { _ = rows.Close() }()

	emptyResult := true
	for rows.Next() {
		if m, err = scanOrgMirror(rows); err != nil {
			return m, errors.Wrap(err, "failed scan org mirror data")
		}
		emptyResult = false
	}
	if emptyResult {
		return m, engine.ErrNotFound
	}
	return m, nil
}

// FindOrgMirrors fetch list of org mirrors by filter values
func (e *Embedded) FindOrgMirrors(ctx context.Context, filter engine.QueryFilter) (mirrors engine.ListResponse, err error) {
	f := filtersBuilder(filter, "organization", "external_namespace")
	queryString := fmt.Sprintf("SELECT %s FROM %s %s", orgMirrorFields, orgMirrorTable, f.allClauses) //nolint:gosec // query sanitizing calling before

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
		return mirrors, errors.Wrap(err, "failed to get org mirrors list")
	}
	defer func() {
		_ = rows.Close()
	}()

	if mirrors.Total = e.getTotalRecordsExcludeRange(orgMirrorTable, filter, []string{"organization", "external_namespace"}); mirrors.Total == 0 {
		return mirrors, nil // may be error handler catch
	}
	mirrors.Data = []interface{}{}
	for rows.Next() {
		var m store.OrgMirror
		if m, err = scanOrgMirror(rows); err != nil {
			return mirrors, errors.Wrap(err, "failed scan org mirror data")
		}
		mirrors.Data = append(mirrors.Data, m)
	}

	return mirrors, nil
}

// UpdateOrgMirror update mirror configuration fields, scheduling state is mutated
// only through UpdateOrgMirrorFields
func (e *Embedded) UpdateOrgMirror(ctx context.Context, m store.OrgMirror) (err error) {

	rule, err := store.MarshalRule(m.Rule)
	if err != nil {
		return errors.Wrap(err, "failed to serialize mirror rule")
	}

	config, err := json.Marshal(m.Config)
	if err != nil {
		return errors.Wrap(err, "failed to serialize mirror config")
	}

	filters, err := json.Marshal(m.RepositoryFilters)
	if err != nil {
		return errors.Wrap(err, "failed to serialize repository filters")
	}

	var res sql.Result
	if len(m.Username) > 0 || len(m.Password) > 0 {
		res, err = e.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_enabled=?, external_registry_type=?,
			external_registry_url=?, external_namespace=?, username=?, password=?, config=?, robot_login=?,
			root_rule=?, repository_filters=?, visibility=?, delete_stale_repos=?, sync_interval=?, skopeo_timeout=?
			WHERE id = ?`, orgMirrorTable),
			m.IsEnabled, string(m.ExternalRegistryType), m.ExternalRegistryURL, m.ExternalNamespace,
			m.Username, m.Password, string(config), m.RobotLogin, rule, string(filters), m.Visibility,
			m.DeleteStaleRepos, m.SyncInterval, m.SkopeoTimeout, m.ID)
	} else {
		// skip a credentials update when updating values are empty
		res, err = e.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_enabled=?, external_registry_type=?,
			external_registry_url=?, external_namespace=?, config=?, robot_login=?,
			root_rule=?, repository_filters=?, visibility=?, delete_stale_repos=?, sync_interval=?, skopeo_timeout=?
			WHERE id = ?`, orgMirrorTable),
			m.IsEnabled, string(m.ExternalRegistryType), m.ExternalRegistryURL, m.ExternalNamespace,
			string(config), m.RobotLogin, rule, string(filters), m.Visibility,
			m.DeleteStaleRepos, m.SyncInterval, m.SkopeoTimeout, m.ID)
	}

	if err != nil {
		return errors.Wrap(err, "failed to update org mirror data")
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

// UpdateOrgMirrorFields apply raw field values to rows matched by every entry of conditionClause
func (e *Embedded) UpdateOrgMirrorFields(ctx context.Context, conditionClause, fields map[string]interface{}) (affected int64, err error) {
	return e.updateFields(ctx, orgMirrorTable, conditionClause, fields)
}

// DeleteOrgMirror delete org mirror record by ID together with its discovery records.
// Repo mirror rows provisioned from the org keep syncing as standalone configs, their
// deletion stays operator-initiated, only the dangling org pointer is cleared.
func (e *Embedded) DeleteOrgMirror(ctx context.Context, id int64) (err error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction for org mirror delete")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE org_mirror_id = ?", discoveredTable), id); err != nil {
		return errors.Wrap(err, "failed execute query for discovered repos delete")
	}

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET org_mirror_id = 0 WHERE org_mirror_id = ?", repoMirrorTable), id); err != nil {
		return errors.Wrap(err, "failed to detach provisioned repo mirrors")
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", orgMirrorTable), id)
	if err != nil {
		return errors.Wrapf(err, "failed execute query for org mirror delete")
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		err = engine.ErrNotFound
		return err
	}

	return tx.Commit()
}

// EligibleOrgMirrors fetch enabled org mirrors ready for a discovery pass, same
// candidate predicates as for repo mirrors
func (e *Embedded) EligibleOrgMirrors(ctx context.Context, now, afterID, limit int64) (mirrors []store.OrgMirror, err error) {
	queryString := fmt.Sprintf(`SELECT %s FROM %s
		WHERE is_enabled = 1 AND id > ? AND (
			(sync_status = ? AND sync_expiration_date = 0)
			OR (sync_start_date > 0 AND sync_start_date <= ? AND sync_retries_remaining > 0 AND sync_status != ? AND sync_expiration_date = 0)
			OR (sync_start_date > 0 AND sync_start_date <= ? AND sync_retries_remaining > 0 AND sync_status = ? AND sync_expiration_date <= ?)
		)
		ORDER BY sync_start_date ASC LIMIT ?`, orgMirrorFields, orgMirrorTable)

	stmt, err := e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare query for eligible org mirrors")
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.QueryContext(ctx, afterID,
		store.SyncStatusSyncNow, now, store.SyncStatusSyncing, now, store.SyncStatusSyncing, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get eligible org mirrors")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		m, errScan := scanOrgMirror(rows)
		if errScan != nil {
			return nil, errors.Wrap(errScan, "failed scan org mirror data")
		}
		mirrors = append(mirrors, m)
	}
	return mirrors, nil
}

// OrgMirrorIDBounds fetch min and max row id for candidate pagination
func (e *Embedded) OrgMirrorIDBounds(ctx context.Context) (minID, maxID int64, err error) {
	return e.idBounds(ctx, orgMirrorTable)
}

func scanOrgMirror(rows *sql.Rows) (m store.OrgMirror, err error) {
	var registryType, rule, config, filters string

	err = rows.Scan(&m.ID, &m.Organization, &m.IsEnabled, &registryType, &m.ExternalRegistryURL,
		&m.ExternalNamespace, (*[]byte)(&m.Username), (*[]byte)(&m.Password), &config, &m.RobotLogin, &rule, &filters,
		&m.Visibility, &m.DeleteStaleRepos, &m.SyncInterval, &m.SyncStartDate, &m.SyncExpirationDate,
		&m.SyncRetriesRemaining, &m.SyncStatus, &m.SyncTransactionID, &m.LastSyncDate, &m.SkopeoTimeout,
		&m.CreationDate)
	if err != nil {
		return m, err
	}

	m.ExternalRegistryType = store.RegistryType(registryType)
	if m.Rule, err = store.UnmarshalRule(rule); err != nil {
		return m, errors.Wrap(err, "failed to restore mirror rule")
	}
	if config != "" {
		if err = json.Unmarshal([]byte(config), &m.Config); err != nil {
			return m, errors.Wrap(err, "failed to restore mirror config")
		}
	}
	if filters != "" {
		if err = json.Unmarshal([]byte(filters), &m.RepositoryFilters); err != nil {
			return m, errors.Wrap(err, "failed to restore repository filters")
		}
	}
	return m, nil
}
