package favourites

import (
	"errors"
	"fmt"
	"strings"
)

// StreamSource identifies the external platform a favourited channel lives on.
type StreamSource string

const (
	// SourceTwitch marks a channel hosted on Twitch.
	SourceTwitch StreamSource = "Twitch"
	// SourceYoutube marks a channel hosted on YouTube.
	SourceYoutube StreamSource = "Youtube"
)

// ErrInvalidSource indicates an unrecognised stream source value.
var ErrInvalidSource = errors.New("favourites: invalid stream source")

// ParseSource validates a raw source value from a request payload.
func ParseSource(rawValue string) (StreamSource, error) {
	switch StreamSource(strings.TrimSpace(rawValue)) {
	case SourceTwitch:
		return SourceTwitch, nil
	case SourceYoutube:
		return SourceYoutube, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, rawValue)
	}
}

// String returns the stored representation of the source.
func (s StreamSource) String() string {
	return string(s)
}

// FavouriteStream records one user's saved reference to an external channel.
// The composite unique index closes the check-then-insert race under
// concurrent writers: a second insert of the same triple fails at the
// storage layer and is reported as a conflict.
type FavouriteStream struct {
	ID             int    `gorm:"column:id;primaryKey;autoIncrement"`
	AssociatedUser int    `gorm:"column:associated_user;not null;uniqueIndex:idx_favourite_user_identifier_source,priority:1"`
	Identifier     string `gorm:"column:identifier;size:190;not null;uniqueIndex:idx_favourite_user_identifier_source,priority:2"`
	Source         string `gorm:"column:source;size:32;not null;uniqueIndex:idx_favourite_user_identifier_source,priority:3"`
}

// TableName provides the explicit table binding for GORM.
func (FavouriteStream) TableName() string {
	return "favourite_streams"
}
