package embedded

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/zebox/registry-mirror/app/store"
	"github.com/zebox/registry-mirror/app/store/engine"
)

// CreateRepository create a new local repository record
func (e *Embedded) CreateRepository(ctx context.Context, r *store.Repository) (err error) {
	if r.Name == "" {
		return errors.New("required repository field not set: Name")
	}

	createSQL := fmt.Sprintf(`INSERT INTO %s (
		repository_name,
		organization,
		visibility,
		description,
		creation_date
	) values(?, ?, ?, ?, ?)`, repositoriesTable)
	stmt, err := e.db.PrepareContext(ctx, createSQL)
	if err != nil {
		return errors.Wrap(err, "failed to create repository entry")
	}
	defer func() { _ = stmt.Close() }()
	result, err := stmt.ExecContext(ctx, r.Name, r.Organization, r.Visibility, r.Description, r.CreationDate)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err == nil {
		r.ID = id
	}
	return err
}

// GetRepositoryByName get local repository record by its full name
func (e *Embedded) GetRepositoryByName(ctx context.Context, name string) (r store.Repository, err error) {

	queryString := fmt.Sprintf("SELECT id, repository_name, organization, visibility, description, creation_date FROM %s WHERE repository_name = ?", repositoriesTable)
	stmt, err := e.db.PrepareContext(ctx, queryString)
	if err != nil {
		return r, errors.Wrap(err, "failed to prepare query for get repository data")
	}
	defer func() { _ = stmt.Close() }()

	rows, err := stmt.QueryContext(ctx, name)
	if err != nil {
		return r, errors.Wrap(err, "failed to get repository data")
	}
	defer func() { _ = rows.Close() }()

	emptyResult := true
	for rows.Next() {
		if err = rows.Scan(&r.ID, &r.Name, &r.Organization, &r.Visibility, &r.Description, &r.CreationDate); err != nil {
			return r, errors.Wrap(err, "failed scan repository data")
		}
		emptyResult = false
	}
	if emptyResult {
		return r, engine.ErrNotFound
	}
	return r, nil
}

// FindRepositories fetch list of existed local repositories
func (e *Embedded) FindRepositories(ctx context.Context, filter engine.QueryFilter) (repos engine.ListResponse, err error) {
	f := filtersBuilder(filter, "repository_name", "organization")
	queryString := fmt.Sprintf("SELECT id, repository_name, organization, visibility, description, creation_date FROM %s %s", repositoriesTable, f.allClauses) //nolint:gosec // query sanitizing calling before

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
		return repos, errors.Wrap(err, "failed to get repositories list")
	}
	defer func() {
		_ = rows.Close()
	}()

	if repos.Total = e.getTotalRecordsExcludeRange(repositoriesTable, filter, []string{"repository_name", "organization"}); repos.Total == 0 {
		return repos, nil // may be error handler catch
	}
	repos.Data = []interface{}{}
	for rows.Next() {
		var r store.Repository
		if err = rows.Scan(&r.ID, &r.Name, &r.Organization, &r.Visibility, &r.Description, &r.CreationDate); err != nil {
			return repos, errors.Wrap(err, "failed scan repository data")
		}
		repos.Data = append(repos.Data, r)
	}

	return repos, nil
}

// DeleteRepository delete local repository record by ID
func (e *Embedded) DeleteRepository(ctx context.Context, id int64) (err error) {
	res, err := e.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", repositoriesTable), id)
	if err != nil {
		return errors.Wrapf(err, "failed execute query for repository delete")
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
