package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/openspotter/openspotter-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                  TEXT PRIMARY KEY,
	email               TEXT NOT NULL UNIQUE,
	password_hash       TEXT NOT NULL,
	callsign            TEXT,
	display_name        TEXT NOT NULL DEFAULT '',
	role                TEXT NOT NULL DEFAULT 'spotter',
	is_active           BOOLEAN NOT NULL DEFAULT 1,
	bio                 TEXT NOT NULL DEFAULT '',
	share_location_with TEXT NOT NULL DEFAULT 'public',
	created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login_at       DATETIME
);

CREATE TABLE IF NOT EXISTS locations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	altitude   REAL,
	accuracy   REAL,
	heading    REAL,
	speed      REAL,
	visibility TEXT NOT NULL DEFAULT 'public',
	timestamp  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_locations_user_timestamp ON locations(user_id, timestamp);

CREATE TABLE IF NOT EXISTS channels (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT NOT NULL DEFAULT '',
	is_public     BOOLEAN NOT NULL DEFAULT 1,
	min_role      TEXT NOT NULL DEFAULT 'spotter',
	created_by_id TEXT REFERENCES users(id),
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	sender_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	channel_id   TEXT REFERENCES channels(id) ON DELETE CASCADE,
	recipient_id TEXT REFERENCES users(id) ON DELETE CASCADE,
	content      TEXT NOT NULL,
	latitude     REAL,
	longitude    REAL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	edited_at    DATETIME,
	is_deleted   BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_channel_created ON messages(channel_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_dm ON messages(sender_id, recipient_id, created_at);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (and if needed initializes) a SQLite store at dbPath.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash, callsign string) (*store.User, error) {
	id := uuid.NewString()
	var cs any
	if callsign != "" {
		cs = callsign
	}
	query := `
		INSERT INTO users (id, email, password_hash, callsign)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, email, passwordHash, cs); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

const userColumns = `
	id, email, password_hash, COALESCE(callsign, ''), display_name, role,
	is_active, bio, share_location_with, created_at, updated_at, last_login_at
`

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, id string, upd store.ProfileUpdate) (*store.User, error) {
	query := `
		UPDATE users SET
			callsign            = COALESCE(?, callsign),
			display_name        = COALESCE(?, display_name),
			bio                 = COALESCE(?, bio),
			share_location_with = COALESCE(?, share_location_with),
			updated_at          = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, upd.Callsign, upd.DisplayName, upd.Bio, upd.ShareLocationWith, id)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *SQLiteStore) TouchLastLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	var lastLogin sql.NullTime
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Callsign, &u.DisplayName, &u.Role,
		&u.IsActive, &u.Bio, &u.ShareLocationWith, &u.CreatedAt, &u.UpdatedAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	return &u, nil
}

// ==== LocationStore implementation ====

func (s *SQLiteStore) SaveLocation(ctx context.Context, loc *store.Location) error {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now().UTC()
	}
	query := `
		INSERT INTO locations (id, user_id, latitude, longitude, altitude, accuracy, heading, speed, visibility, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		loc.ID, loc.UserID, loc.Latitude, loc.Longitude,
		loc.Altitude, loc.Accuracy, loc.Heading, loc.Speed,
		loc.Visibility, loc.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListActiveLocations(ctx context.Context, since time.Time) ([]*store.ActiveLocation, error) {
	// Latest row per user within the window, joined with owner identity.
	query := `
		SELECT l.id, l.user_id, l.latitude, l.longitude, l.altitude, l.accuracy,
		       l.heading, l.speed, l.visibility, l.timestamp,
		       COALESCE(u.callsign, ''), u.role
		FROM locations l
		JOIN users u ON u.id = l.user_id
		JOIN (
			SELECT user_id, MAX(timestamp) AS max_ts
			FROM locations
			WHERE timestamp >= ?
			GROUP BY user_id
		) latest ON latest.user_id = l.user_id AND latest.max_ts = l.timestamp
	`
	rows, err := s.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("query active locations: %w", err)
	}
	defer rows.Close()

	var out []*store.ActiveLocation
	for rows.Next() {
		var al store.ActiveLocation
		if err := rows.Scan(
			&al.ID, &al.UserID, &al.Latitude, &al.Longitude, &al.Altitude, &al.Accuracy,
			&al.Heading, &al.Speed, &al.Visibility, &al.Timestamp,
			&al.Callsign, &al.Role,
		); err != nil {
			return nil, fmt.Errorf("scan active location: %w", err)
		}
		out = append(out, &al)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListUserLocations(ctx context.Context, userID string, since time.Time, limit int) ([]*store.Location, error) {
	query := `
		SELECT id, user_id, latitude, longitude, altitude, accuracy, heading, speed, visibility, timestamp
		FROM locations
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query user locations: %w", err)
	}
	defer rows.Close()

	var out []*store.Location
	for rows.Next() {
		var l store.Location
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Latitude, &l.Longitude, &l.Altitude, &l.Accuracy,
			&l.Heading, &l.Speed, &l.Visibility, &l.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteUserLocations(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM locations WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user locations: %w", err)
	}
	return nil
}

// ==== ChannelStore implementation ====

func (s *SQLiteStore) CreateChannel(ctx context.Context, ch *store.Channel) error {
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO channels (id, name, description, is_public, min_role, created_by_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var createdBy any
	if ch.CreatedByID != "" {
		createdBy = ch.CreatedByID
	}
	_, err := s.db.ExecContext(ctx, query,
		ch.ID, ch.Name, ch.Description, ch.IsPublic, ch.MinRole, createdBy, ch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

const channelColumns = `id, name, description, is_public, min_role, COALESCE(created_by_id, ''), created_at`

func (s *SQLiteStore) GetChannelByID(ctx context.Context, id string) (*store.Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

func (s *SQLiteStore) GetChannelByName(ctx context.Context, name string) (*store.Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE name = ?`, name)
	return scanChannel(row)
}

func (s *SQLiteStore) ListChannels(ctx context.Context) ([]*store.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var out []*store.Channel
	for rows.Next() {
		var ch store.Channel
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.IsPublic, &ch.MinRole, &ch.CreatedByID, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, &ch)
	}
	return out, rows.Err()
}

func scanChannel(row *sql.Row) (*store.Channel, error) {
	var ch store.Channel
	err := row.Scan(&ch.ID, &ch.Name, &ch.Description, &ch.IsPublic, &ch.MinRole, &ch.CreatedByID, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan channel: %w", err)
	}
	return &ch, nil
}

// ==== MessageStore implementation ====

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO messages (id, sender_id, channel_id, recipient_id, content, latitude, longitude, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.SenderID, msg.ChannelID, msg.RecipientID,
		msg.Content, msg.Latitude, msg.Longitude, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

const messageColumns = `id, sender_id, channel_id, recipient_id, content, latitude, longitude, created_at, edited_at, is_deleted`

func (s *SQLiteStore) ListChannelMessages(ctx context.Context, channelID string, before *time.Time, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id = ? AND is_deleted = 0
	`
	args := []any{channelID}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	return s.queryMessages(ctx, query, args...)
}

func (s *SQLiteStore) ListDirectMessages(ctx context.Context, userA, userB string, before *time.Time, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE channel_id IS NULL AND is_deleted = 0
		  AND ((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?))
	`
	args := []any{userA, userB, userB, userA}
	if before != nil {
		query += ` AND created_at < ?`
		args = append(args, *before)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	return s.queryMessages(ctx, query, args...)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []*store.Message
	for rows.Next() {
		var m store.Message
		var edited sql.NullTime
		if err := rows.Scan(
			&m.ID, &m.SenderID, &m.ChannelID, &m.RecipientID, &m.Content,
			&m.Latitude, &m.Longitude, &m.CreatedAt, &edited, &m.IsDeleted,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if edited.Valid {
			m.EditedAt = &edited.Time
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
