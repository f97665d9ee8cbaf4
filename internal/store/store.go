package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a registered spotter account.
type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Callsign          string
	DisplayName       string
	Role              string
	IsActive          bool
	Bio               string
	ShareLocationWith string // default visibility tier for location updates
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastLoginAt       *time.Time
}

// ProfileUpdate carries the mutable fields of a user profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Callsign          *string
	DisplayName       *string
	Bio               *string
	ShareLocationWith *string
}

// Location is a persisted position report.
type Location struct {
	ID         string
	UserID     string
	Latitude   float64
	Longitude  float64
	Altitude   *float64
	Accuracy   *float64
	Heading    *float64
	Speed      *float64
	Visibility string
	Timestamp  time.Time
}

// ActiveLocation is a location joined with its owner's public identity,
// used for the active spotters view.
type ActiveLocation struct {
	Location
	Callsign string
	Role     string
}

// Channel is a group-messaging scope with a minimum-role gate.
type Channel struct {
	ID          string
	Name        string
	Description string
	IsPublic    bool
	MinRole     string
	CreatedByID string
	CreatedAt   time.Time
}

// Message is a persisted chat message. Exactly one of ChannelID and
// RecipientID is set: channel messages fan out to subscribers, direct
// messages go to a single recipient.
type Message struct {
	ID          string
	SenderID    string
	ChannelID   *string
	RecipientID *string
	Content     string
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time
	EditedAt    *time.Time
	IsDeleted   bool
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a user with the given email, hashed password and callsign.
	CreateUser(ctx context.Context, email, passwordHash, callsign string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpdateProfile applies a partial profile update and returns the fresh record.
	UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*User, error)

	// TouchLastLogin records a successful login.
	TouchLastLogin(ctx context.Context, id string) error
}

// LocationStore handles location persistence.
type LocationStore interface {
	// SaveLocation persists a location, assigning ID and timestamp if unset.
	SaveLocation(ctx context.Context, loc *Location) error

	// ListActiveLocations returns the most recent location per user since the
	// given time, joined with the owner's callsign and role.
	ListActiveLocations(ctx context.Context, since time.Time) ([]*ActiveLocation, error)

	// ListUserLocations returns a user's locations since the given time,
	// newest first, capped at limit.
	ListUserLocations(ctx context.Context, userID string, since time.Time, limit int) ([]*Location, error)

	// DeleteUserLocations removes all location history for a user.
	DeleteUserLocations(ctx context.Context, userID string) error
}

// ChannelStore handles chat channel persistence.
type ChannelStore interface {
	// CreateChannel creates a channel.
	CreateChannel(ctx context.Context, ch *Channel) error

	// GetChannelByID retrieves a channel by ID.
	GetChannelByID(ctx context.Context, id string) (*Channel, error)

	// GetChannelByName retrieves a channel by name.
	GetChannelByName(ctx context.Context, name string) (*Channel, error)

	// ListChannels lists all channels.
	ListChannels(ctx context.Context) ([]*Channel, error)
}

// MessageStore handles chat message persistence.
type MessageStore interface {
	// SaveMessage persists a message, assigning ID and created-at if unset.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListChannelMessages returns non-deleted channel messages, newest first.
	// If before is non-nil only older messages are returned.
	ListChannelMessages(ctx context.Context, channelID string, before *time.Time, limit int) ([]*Message, error)

	// ListDirectMessages returns the DM history between two users, newest first.
	ListDirectMessages(ctx context.Context, userA, userB string, before *time.Time, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	LocationStore
	ChannelStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
