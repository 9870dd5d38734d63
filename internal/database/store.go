package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "chatwire/pkg/database"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Store implements interfaces.MessageStore and interfaces.UserStore on
// SQLite. All writes funnel through a single goroutine; reads run
// concurrently against the WAL.
type Store struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewStore opens the database, applies pragmas and migrations, and
// starts the write loop.
func NewStore(config *dbconfig.Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	if err := dbconfig.NewMigrationManager(db).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	store := &Store{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	store.wg.Add(1)
	go store.writeLoop()

	return store, nil
}

// writeLoop processes all write operations in a single goroutine.
// A failed write is retried exactly once after a short backoff.
func (s *Store) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case op := <-s.writeChannel:
			err := op.operation(s.db)
			if err != nil {
				log.Printf("database write failed, retrying in 5 seconds: %v", err)
				time.Sleep(5 * time.Second)
				err = op.operation(s.db)
				if err != nil {
					log.Printf("database write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-s.shutdown:
			return
		}
	}
}

func (s *Store) executeWrite(operation func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	s.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case s.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-s.shutdown:
		return fmt.Errorf("store is shutting down")
	}
}

// SaveMessage appends a message to the log.
func (s *Store) SaveMessage(ctx context.Context, message *types.ChatMessage) error {
	if err := message.Validate(); err != nil {
		return err
	}

	return s.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO messages (id, text, author_id, recipient_id, scope, is_read, read_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			message.ID,
			message.Text,
			message.AuthorID,
			message.RecipientID,
			string(message.Scope),
			message.IsRead,
			message.ReadAt,
			message.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
}

const messageColumns = `
	m.id, m.text, m.author_id, m.recipient_id, m.scope, m.is_read, m.read_at, m.created_at,
	u.id, u.username, u.display_color
`

// GlobalMessages returns at most limit of the newest global messages in
// ascending creation order. The inner query picks the newest rows, the
// outer one restores chronological order for replay.
func (s *Store) GlobalMessages(ctx context.Context, limit int) ([]*types.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT * FROM messages
			WHERE scope = 'global'
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) m
		JOIN users u ON u.id = m.author_id
		ORDER BY m.created_at ASC, m.id ASC
	`, messageColumns)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query global messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// DirectMessages returns the full direct history between two users,
// both directions, ascending.
func (s *Store) DirectMessages(ctx context.Context, userID, counterpartID string) ([]*types.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.scope = 'direct'
		  AND ((m.author_id = ? AND m.recipient_id = ?)
		    OR (m.author_id = ? AND m.recipient_id = ?))
		ORDER BY m.created_at ASC, m.id ASC
	`, messageColumns)

	rows, err := s.db.QueryContext(ctx, query, userID, counterpartID, counterpartID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query direct messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanMessages(rows)
}

// MarkRead flips unread messages to read. Already-read rows keep their
// original read_at, so repeated calls converge on the same state.
func (s *Store) MarkRead(ctx context.Context, messageIDs []string, readAt time.Time) error {
	if len(messageIDs) == 0 {
		return nil
	}

	return s.executeWrite(func(db *sql.DB) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(messageIDs)), ",")
		query := fmt.Sprintf(`
			UPDATE messages
			SET is_read = 1, read_at = ?
			WHERE id IN (%s) AND is_read = 0
		`, placeholders)

		args := make([]interface{}, 0, len(messageIDs)+1)
		args = append(args, readAt)
		for _, id := range messageIDs {
			args = append(args, id)
		}

		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to mark messages read: %w", err)
		}
		return nil
	})
}

// ConversationPartners returns the distinct users the given user has
// exchanged direct messages with, in either direction.
func (s *Store) ConversationPartners(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT DISTINCT partner FROM (
			SELECT recipient_id AS partner FROM messages
			WHERE scope = 'direct' AND author_id = ?
			UNION
			SELECT author_id AS partner FROM messages
			WHERE scope = 'direct' AND recipient_id = ?
		)
		WHERE partner IS NOT NULL
	`

	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation partners: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var partners []string
	for rows.Next() {
		var partner string
		if err := rows.Scan(&partner); err != nil {
			return nil, fmt.Errorf("failed to scan partner row: %w", err)
		}
		partners = append(partners, partner)
	}
	return partners, rows.Err()
}

// LatestDirectMessage returns the newest direct message between the
// pair. Ties on created_at break by id so the result is stable.
func (s *Store) LatestDirectMessage(ctx context.Context, userID, counterpartID string) (*types.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.scope = 'direct'
		  AND ((m.author_id = ? AND m.recipient_id = ?)
		    OR (m.author_id = ? AND m.recipient_id = ?))
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT 1
	`, messageColumns)

	row := s.db.QueryRowContext(ctx, query, userID, counterpartID, counterpartID, userID)
	message, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest direct message: %w", err)
	}
	return message, nil
}

// CreateUser inserts a new account. Username and email collisions map
// to their sentinel errors via pre-checks inside the write.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	return s.executeWrite(func(db *sql.DB) error {
		var count int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE username = ?`, user.Username,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check username: %w", err)
		}
		if count > 0 {
			return interfaces.ErrUsernameTaken
		}

		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE email = ?`, user.Email,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if count > 0 {
			return interfaces.ErrEmailTaken
		}

		query := `
			INSERT INTO users (id, username, email, password_hash, display_color, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		color := user.DisplayColor
		if color == "" {
			color = types.DefaultDisplayColor
		}
		_, err := db.ExecContext(ctx, query,
			user.ID, user.Username, user.Email, user.PasswordHash, color, user.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

const userColumns = `id, username, email, password_hash, display_color, created_at`

// UserByID retrieves a user by id.
func (s *Store) UserByID(ctx context.Context, id string) (*types.User, error) {
	return s.userBy(ctx, "id", id)
}

// UserByUsername retrieves a user by exact username.
func (s *Store) UserByUsername(ctx context.Context, username string) (*types.User, error) {
	return s.userBy(ctx, "username", username)
}

// UserByEmail retrieves a user by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*types.User, error) {
	return s.userBy(ctx, "email", email)
}

func (s *Store) userBy(ctx context.Context, column, value string) (*types.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = ?`, userColumns, column)
	row := s.db.QueryRowContext(ctx, query, value)

	var user types.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email,
		&user.PasswordHash, &user.DisplayColor, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, interfaces.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by %s: %w", column, err)
	}
	return &user, nil
}

// SearchUsers matches usernames partially and case-insensitively,
// excluding the requesting user.
func (s *Store) SearchUsers(ctx context.Context, query, excludeID string) ([]*types.User, error) {
	sqlQuery := fmt.Sprintf(`
		SELECT %s FROM users
		WHERE username LIKE ? ESCAPE '\' AND id != ?
		ORDER BY username ASC
		LIMIT 50
	`, userColumns)

	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx, sqlQuery, pattern, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*types.User
	for rows.Next() {
		var user types.User
		err := rows.Scan(
			&user.ID, &user.Username, &user.Email,
			&user.PasswordHash, &user.DisplayColor, &user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// UpdateDisplayColor sets a user's message color.
func (s *Store) UpdateDisplayColor(ctx context.Context, userID, color string) error {
	return s.executeWrite(func(db *sql.DB) error {
		result, err := db.ExecContext(ctx,
			`UPDATE users SET display_color = ? WHERE id = ?`, color, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to update display color: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read update result: %w", err)
		}
		if affected == 0 {
			return interfaces.ErrUserNotFound
		}
		return nil
	})
}

// HealthCheck validates database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users LIMIT 1`).Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for schema validation.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close shuts down the write loop and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	s.wg.Wait()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*types.ChatMessage, error) {
	var (
		message   types.ChatMessage
		author    types.UserIdentity
		recipient sql.NullString
		readAt    sql.NullTime
		scope     string
	)

	err := row.Scan(
		&message.ID, &message.Text, &message.AuthorID, &recipient, &scope,
		&message.IsRead, &readAt, &message.CreatedAt,
		&author.ID, &author.Username, &author.DisplayColor,
	)
	if err != nil {
		return nil, err
	}

	message.Scope = types.MessageScope(scope)
	if recipient.Valid {
		message.RecipientID = &recipient.String
	}
	if readAt.Valid {
		message.ReadAt = &readAt.Time
	}
	message.Author = &author

	return &message, nil
}

func scanMessages(rows *sql.Rows) ([]*types.ChatMessage, error) {
	var messages []*types.ChatMessage
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}
	return messages, nil
}

// escapeLike escapes LIKE wildcards in user-supplied search input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
