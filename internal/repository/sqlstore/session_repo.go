package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"venue-vote/internal/domain/session"
)

const sessionColumns = `id, candidates, location, group_name, created_by, created_at, updated_at,
	deadline, status, votes, voter_names, fired_reminders`

type sessionRow struct {
	ID             string        `db:"id"`
	Candidates     string        `db:"candidates"`
	Location       string        `db:"location"`
	GroupName      string        `db:"group_name"`
	CreatedBy      string        `db:"created_by"`
	CreatedAt      int64         `db:"created_at"`
	UpdatedAt      int64         `db:"updated_at"`
	Deadline       sql.NullInt64 `db:"deadline"`
	Status         string        `db:"status"`
	Votes          string        `db:"votes"`
	VoterNames     string        `db:"voter_names"`
	FiredReminders string        `db:"fired_reminders"`
}

func encodeSession(s *session.Session) (*sessionRow, error) {
	row := &sessionRow{
		ID:        s.ID,
		Location:  s.Location,
		GroupName: s.GroupName,
		CreatedBy: s.CreatedBy,
		CreatedAt: toMillis(s.CreatedAt),
		UpdatedAt: toMillis(s.UpdatedAt),
		Status:    string(s.Status),
	}
	if s.Deadline != nil {
		row.Deadline = sql.NullInt64{Int64: toMillis(*s.Deadline), Valid: true}
	}

	candidates := s.Candidates
	if candidates == nil {
		candidates = []session.Candidate{}
	}
	votes := s.Votes
	if votes == nil {
		votes = map[string]int{}
	}
	names := s.VoterNames
	if names == nil {
		names = map[string]string{}
	}
	reminders := s.FiredReminders
	if reminders == nil {
		reminders = session.Reminders{}
	}

	fields := []struct {
		dst *string
		v   any
	}{
		{&row.Candidates, candidates},
		{&row.Votes, votes},
		{&row.VoterNames, names},
		{&row.FiredReminders, reminders},
	}
	for _, f := range fields {
		b, err := json.Marshal(f.v)
		if err != nil {
			return nil, err
		}
		*f.dst = string(b)
	}
	return row, nil
}

func (row *sessionRow) decode() (*session.Session, error) {
	s := &session.Session{
		ID:        row.ID,
		Location:  row.Location,
		GroupName: row.GroupName,
		CreatedBy: row.CreatedBy,
		CreatedAt: fromMillis(row.CreatedAt),
		UpdatedAt: fromMillis(row.UpdatedAt),
		Status:    session.Status(row.Status),
	}
	if row.Deadline.Valid {
		d := fromMillis(row.Deadline.Int64)
		s.Deadline = &d
	}
	if err := json.Unmarshal([]byte(row.Candidates), &s.Candidates); err != nil {
		return nil, fmt.Errorf("decode candidates of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Votes), &s.Votes); err != nil {
		return nil, fmt.Errorf("decode votes of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.VoterNames), &s.VoterNames); err != nil {
		return nil, fmt.Errorf("decode voter names of %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.FiredReminders), &s.FiredReminders); err != nil {
		return nil, fmt.Errorf("decode reminders of %s: %w", row.ID, err)
	}
	return s, nil
}

type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func persistErr(err error) error {
	return fmt.Errorf("%w: %w", session.ErrPersistence, err)
}

func (r *SessionRepo) Create(ctx context.Context, s *session.Session) (string, error) {
	row, err := encodeSession(s)
	if err != nil {
		return "", persistErr(err)
	}

	_, err = r.db.NamedExecContext(ctx, `
        INSERT INTO sessions (`+sessionColumns+`)
        VALUES (:id, :candidates, :location, :group_name, :created_by, :created_at, :updated_at,
            :deadline, :status, :votes, :voter_names, :fired_reminders)
    `, row)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: duplicate session id %s", session.ErrPersistence, s.ID)
		}
		return "", persistErr(err)
	}
	return s.ID, nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, persistErr(err)
	}
	s, err := row.decode()
	if err != nil {
		return nil, persistErr(err)
	}
	return s, nil
}

func (r *SessionRepo) Put(ctx context.Context, s *session.Session) error {
	return r.put(ctx, r.db, s)
}

func (r *SessionRepo) put(ctx context.Context, ext sqlx.ExtContext, s *session.Session) error {
	row, err := encodeSession(s)
	if err != nil {
		return persistErr(err)
	}

	res, err := sqlx.NamedExecContext(ctx, ext, `
        UPDATE sessions SET
            candidates = :candidates, location = :location, group_name = :group_name,
            created_by = :created_by, created_at = :created_at, updated_at = :updated_at,
            deadline = :deadline, status = :status, votes = :votes,
            voter_names = :voter_names, fired_reminders = :fired_reminders
        WHERE id = :id
    `, row)
	if err != nil {
		return persistErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return persistErr(err)
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) ListActive(ctx context.Context) ([]session.Session, error) {
	var rows []sessionRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
        SELECT `+sessionColumns+`
        FROM sessions WHERE status = ? ORDER BY created_at
    `), string(session.StatusActive))
	if err != nil {
		return nil, persistErr(err)
	}

	res := make([]session.Session, 0, len(rows))
	for i := range rows {
		s, err := rows[i].decode()
		if err != nil {
			return nil, persistErr(err)
		}
		res = append(res, *s)
	}
	return res, nil
}

// Update locks the row for the duration of fn. PostgreSQL takes a row lock
// with FOR UPDATE; SQLite transactions are opened IMMEDIATE and hold the
// database write lock.
func (r *SessionRepo) Update(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, persistErr(err)
	}
	defer tx.Rollback()

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	if isPostgres(r.db) {
		query += ` FOR UPDATE`
	}

	var row sessionRow
	err = tx.GetContext(ctx, &row, tx.Rebind(query), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, persistErr(err)
	}
	s, err := row.decode()
	if err != nil {
		return nil, persistErr(err)
	}

	if err := fn(s); err != nil {
		return nil, err
	}

	if err := r.put(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, persistErr(err)
	}
	return s, nil
}

func (r *SessionRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
