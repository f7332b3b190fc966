package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultHistoryWindow bounds how many recent turns feed back into
// prompt composition when the caller does not say otherwise.
const DefaultHistoryWindow = 10

const (
	sessionColumns = "id, tenant_id, token, client_ip, user_agent, active, created_at, ended_at"
	turnColumns    = "id, seq, session_id, tenant_id, role, content, metadata, created_at"
)

// Store persists sessions and turns in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a session Store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// GetOrCreate resolves the session for a chat request.
//
// An empty, unknown or ended token yields a fresh session with a new token,
// so a widget holding a stale token keeps working; it just loses its history.
// The second return value reports whether a session was created.
func (s *Store) GetOrCreate(ctx context.Context, tenantID uuid.UUID, token string, client ClientInfo) (*Session, bool, error) {
	if token != "" {
		existing, err := s.Get(ctx, tenantID, token)
		switch {
		case err == nil && existing.Active:
			return existing, false, nil
		case err == nil:
			// Ended session; start over.
		case !errors.Is(err, ErrNotFound):
			return nil, false, err
		}
	}

	sess, err := s.create(ctx, tenantID, client)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (s *Store) create(ctx context.Context, tenantID uuid.UUID, client ClientInfo) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO sessions (tenant_id, token, client_ip, user_agent)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+sessionColumns,
		tenantID, uuid.NewString(), client.IP, client.UserAgent)

	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("session created", "session", sess.ID, "tenant", tenantID)
	return sess, nil
}

// Get looks up a session by token within a tenant.
func (s *Store) Get(ctx context.Context, tenantID uuid.UUID, token string) (*Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE tenant_id = $1 AND token = $2`,
		tenantID, token)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// End marks the session inactive. Ending an already-ended session returns
// ErrEnded; an unknown token returns ErrNotFound.
func (s *Store) End(ctx context.Context, tenantID uuid.UUID, token string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET active = FALSE, ended_at = now()
		 WHERE tenant_id = $1 AND token = $2 AND active`,
		tenantID, token)
	if err != nil {
		return fmt.Errorf("ending session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := s.Get(ctx, tenantID, token); err != nil {
		return err
	}
	return ErrEnded
}

// AppendTurn records one message on the session.
func (s *Store) AppendTurn(ctx context.Context, sess *Session, role Role, content string, meta TurnMetadata) (*Turn, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encoding turn metadata: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (session_id, tenant_id, role, content, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+turnColumns,
		sess.ID, sess.TenantID, string(role), content, metaJSON)

	turn, err := scanTurn(row)
	if err != nil {
		return nil, fmt.Errorf("appending turn: %w", err)
	}
	return turn, nil
}

// RecentTurns returns the last limit turns of a session in chronological
// order. limit <= 0 uses DefaultHistoryWindow.
func (s *Store) RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+turnColumns+` FROM messages
		 WHERE session_id = $1
		 ORDER BY seq DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
		turns = append(turns, *turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Newest-first from the query; callers want oldest-first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// CountTurns reports how many turns the session holds.
func (s *Store) CountTurns(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE session_id = $1`, sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting turns: %w", err)
	}
	return n, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID, &sess.TenantID, &sess.Token, &sess.ClientIP, &sess.UserAgent,
		&sess.Active, &sess.CreatedAt, &sess.EndedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func scanTurn(row pgx.Row) (*Turn, error) {
	var (
		turn     Turn
		role     string
		metaJSON []byte
	)
	err := row.Scan(
		&turn.ID, &turn.Seq, &turn.SessionID, &turn.TenantID, &role, &turn.Content,
		&metaJSON, &turn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	turn.Role = Role(role)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &turn.Metadata); err != nil {
			return nil, fmt.Errorf("decoding turn metadata: %w", err)
		}
	}
	return &turn, nil
}
