package types

import (
	"time"

	"github.com/google/uuid"
)

// RuleID represents a rule identifier.
// Rules created here get UUIDv7 ids; rows imported from the older store keep
// whatever UUID they already had.
type RuleID string

// QuoteID represents a UUIDv7 saved-quote identifier.
// UUIDv7 time-ordering keeps recent quotes clustered in B-tree indexes.
type QuoteID string

// NewRuleID generates a UUIDv7 rule identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewQuoteID generates a UUIDv7 quote identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewQuoteID() QuoteID {
	return QuoteID(uuid.Must(uuid.NewV7()).String())
}

// ParseQuoteID validates and converts a string to QuoteID. Quote ids are
// always generated here, so anything that is not a UUID cannot exist.
func ParseQuoteID(s string) (QuoteID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return QuoteID(s), nil
}

// QuoteIDTime extracts the timestamp embedded in a UUIDv7 quote ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func QuoteIDTime(id QuoteID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil || u.Version() != 7 {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
