package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"refsync/internal/reconcile/models"
	id "refsync/pkg/domain"
	"refsync/pkg/platform/sentinel"
	txcontext "refsync/pkg/platform/tx"
)

//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

// PostgresStore is the data-access service on PostgreSQL. Every method joins
// the transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies the schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, fn)
}

func (s *PostgresStore) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFor(ctx, s.db)
}

func mapWriteErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", what, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// textArray binds a string slice as a text[] parameter; nil binds as an
// empty array so NOT NULL columns accept it.
func textArray(v []string) any {
	if v == nil {
		v = []string{}
	}
	return pq.Array(v)
}

type scanner interface {
	Scan(dest ...any) error
}

func nullUUID[T ~[16]byte](v *T) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

// =============================================================================
// Organizations
// =============================================================================

const orgColumns = `id, name, active, affiliate, members, created_at, updated_at`

func scanOrganization(row scanner) (*models.Organization, error) {
	var (
		o   models.Organization
		oid uuid.UUID
	)
	if err := row.Scan(&oid, &o.Name, &o.Active, &o.Affiliate, pq.Array(&o.Members), &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ID = id.OrganizationID(oid)
	return &o, nil
}

func (s *PostgresStore) queryOrganizations(ctx context.Context, where string, args ...any) ([]*models.Organization, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations `+where+` ORDER BY created_at, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()
	var out []*models.Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	return s.queryOrganizations(ctx, "")
}

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, uuid.UUID(orgID))
	o, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) FindOrganizationsByName(ctx context.Context, name string) ([]*models.Organization, error) {
	return s.queryOrganizations(ctx, "WHERE name = $1", name)
}

func (s *PostgresStore) CreateOrganization(ctx context.Context, o *models.Organization) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO organizations (`+orgColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(o.ID), o.Name, o.Active, o.Affiliate, textArray(o.Members), o.CreatedAt, o.UpdatedAt)
	return mapWriteErr(err, "insert organization")
}

func (s *PostgresStore) UpdateOrganization(ctx context.Context, o *models.Organization) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE organizations
		SET name = $2, active = $3, affiliate = $4, members = $5, updated_at = $6
		WHERE id = $1`,
		uuid.UUID(o.ID), o.Name, o.Active, o.Affiliate, textArray(o.Members), o.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, "update organization")
	}
	return requireAffected(res, "update organization")
}

// =============================================================================
// Editions
// =============================================================================

const editionColumns = `id, short_name, name, branch_path, organization_id, modules, maintainer_type,
	default_language_code, default_language_refsets, active, affiliate, created_at, updated_at`

func scanEdition(row scanner) (*models.Edition, error) {
	var (
		e        models.Edition
		eid, oid uuid.UUID
	)
	err := row.Scan(&eid, &e.ShortName, &e.Name, &e.BranchPath, &oid, pq.Array(&e.Modules), &e.MaintainerType,
		&e.DefaultLanguageCode, pq.Array(&e.DefaultLanguageRefsets), &e.Active, &e.Affiliate, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.ID = id.EditionID(eid)
	e.OrganizationID = id.OrganizationID(oid)
	return &e, nil
}

func (s *PostgresStore) queryEditions(ctx context.Context, where string, args ...any) ([]*models.Edition, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `SELECT `+editionColumns+` FROM editions `+where+` ORDER BY created_at, short_name`, args...)
	if err != nil {
		return nil, fmt.Errorf("query editions: %w", err)
	}
	defer rows.Close()
	var out []*models.Edition
	for rows.Next() {
		e, err := scanEdition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edition: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListEditions(ctx context.Context) ([]*models.Edition, error) {
	return s.queryEditions(ctx, "")
}

func (s *PostgresStore) FindEditionsByShortName(ctx context.Context, shortName string) ([]*models.Edition, error) {
	return s.queryEditions(ctx, "WHERE short_name = $1", shortName)
}

func (s *PostgresStore) CountActiveEditions(ctx context.Context, orgID id.OrganizationID) (int, error) {
	var n int
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM editions WHERE organization_id = $1 AND active`, uuid.UUID(orgID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count editions: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateEdition(ctx context.Context, e *models.Edition) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO editions (`+editionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(e.ID), e.ShortName, e.Name, e.BranchPath, uuid.UUID(e.OrganizationID), textArray(e.Modules),
		e.MaintainerType, e.DefaultLanguageCode, textArray(e.DefaultLanguageRefsets), e.Active, e.Affiliate,
		e.CreatedAt, e.UpdatedAt)
	return mapWriteErr(err, "insert edition")
}

func (s *PostgresStore) UpdateEdition(ctx context.Context, e *models.Edition) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE editions
		SET name = $2, branch_path = $3, organization_id = $4, modules = $5, maintainer_type = $6,
		    default_language_code = $7, default_language_refsets = $8, active = $9, affiliate = $10,
		    updated_at = $11
		WHERE id = $1`,
		uuid.UUID(e.ID), e.Name, e.BranchPath, uuid.UUID(e.OrganizationID), textArray(e.Modules), e.MaintainerType,
		e.DefaultLanguageCode, textArray(e.DefaultLanguageRefsets), e.Active, e.Affiliate, e.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, "update edition")
	}
	return requireAffected(res, "update edition")
}

// =============================================================================
// Refsets
// =============================================================================

const refsetColumns = `id, refset_id, version_date, name, branch_path, module_id, type, narrative, tags,
	edition_id, project_id, version_status, workflow_status, active, latest_published_version,
	created_at, updated_at`

func scanRefset(row scanner) (*models.Refset, error) {
	var (
		r        models.Refset
		rid, eid uuid.UUID
		pid      uuid.NullUUID
		typ      string
		status   string
	)
	err := row.Scan(&rid, &r.RefsetID, &r.VersionDate, &r.Name, &r.BranchPath, &r.ModuleID, &typ, &r.Narrative,
		pq.Array(&r.Tags), &eid, &pid, &status, &r.WorkflowStatus, &r.Active, &r.LatestPublishedVersion,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.ID = id.RefsetRowID(rid)
	r.EditionID = id.EditionID(eid)
	r.Type = models.RefsetType(typ)
	r.VersionStatus = models.VersionStatus(status)
	if pid.Valid {
		p := id.ProjectID(pid.UUID)
		r.ProjectID = &p
	}
	return &r, nil
}

func (s *PostgresStore) queryRefsets(ctx context.Context, where string, args ...any) ([]*models.Refset, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `SELECT `+refsetColumns+` FROM refsets `+where+` ORDER BY refset_id, version_date`, args...)
	if err != nil {
		return nil, fmt.Errorf("query refsets: %w", err)
	}
	defer rows.Close()
	var out []*models.Refset
	for rows.Next() {
		r, err := scanRefset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan refset: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListRefsetsByEdition(ctx context.Context, editionID id.EditionID) ([]*models.Refset, error) {
	return s.queryRefsets(ctx, "WHERE edition_id = $1", uuid.UUID(editionID))
}

func (s *PostgresStore) ListRefsetVersions(ctx context.Context, refsetID string) ([]*models.Refset, error) {
	return s.queryRefsets(ctx, "WHERE refset_id = $1", refsetID)
}

func (s *PostgresStore) CreateRefset(ctx context.Context, r *models.Refset) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO refsets (`+refsetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		uuid.UUID(r.ID), r.RefsetID, r.VersionDate, r.Name, r.BranchPath, r.ModuleID, string(r.Type), r.Narrative,
		textArray(r.Tags), uuid.UUID(r.EditionID), nullUUID(r.ProjectID), string(r.VersionStatus), r.WorkflowStatus,
		r.Active, r.LatestPublishedVersion, r.CreatedAt, r.UpdatedAt)
	return mapWriteErr(err, "insert refset")
}

func (s *PostgresStore) UpdateRefset(ctx context.Context, r *models.Refset) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE refsets
		SET name = $2, branch_path = $3, module_id = $4, type = $5, narrative = $6, tags = $7,
		    project_id = $8, version_status = $9, workflow_status = $10, active = $11,
		    latest_published_version = $12, updated_at = $13
		WHERE id = $1`,
		uuid.UUID(r.ID), r.Name, r.BranchPath, r.ModuleID, string(r.Type), r.Narrative, textArray(r.Tags),
		nullUUID(r.ProjectID), string(r.VersionStatus), r.WorkflowStatus, r.Active, r.LatestPublishedVersion,
		r.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, "update refset")
	}
	return requireAffected(res, "update refset")
}

// =============================================================================
// Projects and teams
// =============================================================================

func (s *PostgresStore) ListProjects(ctx context.Context, orgID id.OrganizationID) ([]*models.Project, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT id, name, code, organization_id, edition_id, active, created_at, updated_at
		FROM projects WHERE organization_id = $1 ORDER BY created_at, name`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()
	var out []*models.Project
	for rows.Next() {
		var (
			p        models.Project
			pid, oid uuid.UUID
			eid      uuid.NullUUID
		)
		if err := rows.Scan(&pid, &p.Name, &p.Code, &oid, &eid, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.ID = id.ProjectID(pid)
		p.OrganizationID = id.OrganizationID(oid)
		if eid.Valid {
			e := id.EditionID(eid.UUID)
			p.EditionID = &e
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountProjectsByEdition(ctx context.Context, editionID id.EditionID) (int, error) {
	var n int
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE edition_id = $1`, uuid.UUID(editionID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *models.Project) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO projects (id, name, code, organization_id, edition_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(p.ID), p.Name, p.Code, uuid.UUID(p.OrganizationID), nullUUID(p.EditionID), p.Active,
		p.CreatedAt, p.UpdatedAt)
	return mapWriteErr(err, "insert project")
}

func (s *PostgresStore) UpdateProject(ctx context.Context, p *models.Project) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE projects
		SET name = $2, code = $3, organization_id = $4, edition_id = $5, active = $6, updated_at = $7
		WHERE id = $1`,
		uuid.UUID(p.ID), p.Name, p.Code, uuid.UUID(p.OrganizationID), nullUUID(p.EditionID), p.Active, p.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, "update project")
	}
	return requireAffected(res, "update project")
}

func (s *PostgresStore) ListTeams(ctx context.Context, orgID id.OrganizationID) ([]*models.Team, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT id, name, type, organization_id, project_id, members, active, created_at, updated_at
		FROM teams WHERE organization_id = $1 ORDER BY created_at, name`, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	defer rows.Close()
	var out []*models.Team
	for rows.Next() {
		var (
			t        models.Team
			tid, oid uuid.UUID
			pid      uuid.NullUUID
			typ      string
		)
		if err := rows.Scan(&tid, &t.Name, &typ, &oid, &pid, pq.Array(&t.Members), &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		t.ID = id.TeamID(tid)
		t.Type = models.TeamType(typ)
		t.OrganizationID = id.OrganizationID(oid)
		if pid.Valid {
			p := id.ProjectID(pid.UUID)
			t.ProjectID = &p
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateTeam(ctx context.Context, t *models.Team) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO teams (id, name, type, organization_id, project_id, members, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(t.ID), t.Name, string(t.Type), uuid.UUID(t.OrganizationID), nullUUID(t.ProjectID),
		textArray(t.Members), t.Active, t.CreatedAt, t.UpdatedAt)
	return mapWriteErr(err, "insert team")
}

func (s *PostgresStore) UpdateTeam(ctx context.Context, t *models.Team) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE teams
		SET name = $2, type = $3, organization_id = $4, project_id = $5, members = $6, active = $7, updated_at = $8
		WHERE id = $1`,
		uuid.UUID(t.ID), t.Name, string(t.Type), uuid.UUID(t.OrganizationID), nullUUID(t.ProjectID),
		textArray(t.Members), t.Active, t.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, "update team")
	}
	return requireAffected(res, "update team")
}

// =============================================================================
// Users
// =============================================================================

func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		u   models.User
		uid uuid.UUID
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT id, username, name, email, roles, active, created_at, updated_at
		FROM users WHERE username = $1`, username).
		Scan(&uid, &u.Username, &u.Name, &u.Email, pq.Array(&u.Roles), &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = id.UserID(uid)
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO users (id, username, name, email, roles, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(u.ID), u.Username, u.Name, u.Email, textArray(u.Roles), u.Active, u.CreatedAt, u.UpdatedAt)
	return mapWriteErr(err, "insert user")
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE users SET name = $2, email = $3, roles = $4, active = $5, updated_at = $6
		WHERE id = $1`,
		uuid.UUID(u.ID), u.Name, u.Email, textArray(u.Roles), u.Active, u.UpdatedAt)
	if err != nil {
		return mapWriteErr(err, "update user")
	}
	return requireAffected(res, "update user")
}
