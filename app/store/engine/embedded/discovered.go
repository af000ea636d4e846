package embedded

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

const discoveredFields = `id, org_mirror_id, repository_name, external_name, repository_id, sync_status,
	sync_start_date, sync_expiration_date, sync_retries_remaining, sync_transaction_id, status_message,
	creation_date, last_sync_date`

// UpsertDiscoveredRepo insert a discovery record or, when a record for the same
// (org mirror, repository name) pair exists already, refresh its external name and
// keep accumulated sync state untouched. The passed record gets the stored row values back.
func (e *Embedded) UpsertDiscoveredRepo(ctx context.Context, r *store.DiscoveredRepo) (err error) {
	if r.OrgMirrorID == 0 || r.RepositoryName == "" {
		return errors.New("required discovered repo fields not set: OrgMirrorID, RepositoryName")
	}

	existing, err := e.GetDiscoveredRepo(ctx, r.OrgMirrorID, r.RepositoryName)
	if err == nil {
		if _, err = e.updateFields(ctx, discoveredTable,
			map[string]interface{}{"id": existing.ID},
			map[string]interface{}{"external_name": r.ExternalName}); err != nil {
			return errors.Wrap(err, "failed to refresh discovered repo record")
		}
		externalName := r.ExternalName
		*r = existing
		r.ExternalName = externalName
		return nil
	}
	if !errors.Is(err, engine.ErrNotFound) {
		return err
	}

	createSQL := fmt.Sprintf(`INSERT INTO %s (
		org_mirror_id,
		repository_name,
		external_name,
		repository_id,
		sync_status,
		sync_start_date,
		sync_expiration_date,
		sync_retries_remaining,
		sync_transaction_id,
		status_message,
		creation_date,
		last_sync_date
	) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, discoveredTable)
	stmt, err := e.db.PrepareContext(ctx, createSQL)
	if err != nil {
		return multierror.Append(err, errors.New("failed to add discovered repo record"))
	}
	defer func() { _ = stmt.Close() }()
	result, err := stmt.ExecContext(ctx, r.OrgMirrorID, r.RepositoryName, r.ExternalName, r.RepositoryID,
		r.SyncStatus, r.SyncStartDate, r.SyncExpirationDate, r.SyncRetriesRemaining, r.SyncTransactionID,
		r.StatusMessage, r.CreationDate, r.LastSyncDate)
	if err != nil {
		return multierror.Append(err, errors.New("failed to add discovered repo record"))
	}

	id, err := result.LastInsertId()
	if err == nil {
		r.ID = id
	}
	return err
}

// GetDiscoveredRepo get discovery record by its (org mirror, repository name) key
func (e *Embedded) GetDiscoveredRepo(ctx context.Context, orgMirrorID int64, repositoryName string) (r store.DiscoveredRepo, err error) {

	queryString := fmt.Sprintf("SELECT %s FROM %s WHERE org_mirror_id = ? AND repository_name = ?", discoveredFields, discoveredTable)
	stmt, err := e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return r, errors.Wrap(err, "failed to prepare query for get discovered repo data")
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.QueryContext(ctx, orgMirrorID, repositoryName)
	if err != nil {
		return r, errors.Wrap(err, "failed to get discovered repo data")
	}
	defer func() { _ = rows.Close() }()

	emptyResult := true
	for rows.Next() {
		if err = rows.Scan(&r.ID, &r.OrgMirrorID, &r.RepositoryName, &r.ExternalName, &r.RepositoryID,
			&r.SyncStatus, &r.SyncStartDate, &r.SyncExpirationDate, &r.SyncRetriesRemaining,
			&r.SyncTransactionID, &r.StatusMessage, &r.CreationDate, &r.LastSyncDate); err != nil {
			return r, errors.Wrap(err, "failed scan discovered repo data")
		}
		emptyResult = false
	}
	if emptyResult {
		return r, engine.ErrNotFound
	}
	return r, nil
}

// FindDiscoveredRepos fetch list of discovery records by filter values
func (e *Embedded) FindDiscoveredRepos(ctx context.Context, filter engine.QueryFilter) (repos engine.ListResponse, err error) {
	f := filtersBuilder(filter, "repository_name", "external_name")
	queryString := fmt.Sprintf("SELECT %s FROM %s %s", discoveredFields, discoveredTable, f.allClauses) //nolint:gosec // query sanitizing calling before

	// avoid error shadowed
	var (
		stmt *sql.Stmt
		rows *sql.Rows
	)
	stmt, err = e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return repos, err
	}

	rows, err = stmt.QueryContext(ctx)
	if err != nil {
		return repos, errors.Wrap(err, "failed to get discovered repos list")
	}
	defer func() {
		_ = rows.Close()
	}()

	if repos.Total = e.getTotalRecordsExcludeRange(discoveredTable, filter, []string{"repository_name", "external_name"}); repos.Total == 0 {
		return repos, nil // may be error handler catch
	}
	repos.Data = []interface{}{}
	for rows.Next() {
		var r store.DiscoveredRepo
		if err = rows.Scan(&r.ID, &r.OrgMirrorID, &r.RepositoryName, &r.ExternalName, &r.RepositoryID,
			&r.SyncStatus, &r.SyncStartDate, &r.SyncExpirationDate, &r.SyncRetriesRemaining,
			&r.SyncTransactionID, &r.StatusMessage, &r.CreationDate, &r.LastSyncDate); err != nil {
			return repos, errors.Wrap(err, "failed scan discovered repo data")
		}
		repos.Data = append(repos.Data, r)
	}

	return repos, nil
}

// UpdateDiscoveredRepoFields apply raw field values to rows matched by every entry of conditionClause
func (e *Embedded) UpdateDiscoveredRepoFields(ctx context.Context, conditionClause, fields map[string]interface{}) (affected int64, err error) {
	return e.updateFields(ctx, discoveredTable, conditionClause, fields)
}

// DeleteDiscoveredRepo delete discovery record by ID
func (e *Embedded) DeleteDiscoveredRepo(ctx context.Context, id int64) (err error) {
	res, err := e.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", discoveredTable), id)
	if err != nil {
		return errors.Wrapf(err, "failed execute query for discovered repo delete")
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
