package domain

import (
	"encoding/json"
	"log/slog"
	"time"
)

// TimestampLayout is the persisted timestamp format (ISO-8601, UTC, milliseconds).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Token is an opaque bearer credential.
//
// Its value is only used for equality; nothing inspects its structure.
type Token string

// String returns the raw token value.
func (t Token) String() string {
	return string(t)
}

// Redacted returns a masked form suitable for logs: first and last 6 characters.
func (t Token) Redacted() string {
	s := string(t)
	if len(s) <= 16 {
		return "***"
	}
	return s[:6] + "..." + s[len(s)-6:]
}

// LogValue implements slog.LogValuer.
func (t Token) LogValue() slog.Value {
	return slog.StringValue(t.Redacted())
}

// InsertOutcome is the result of a successful store insert.
type InsertOutcome int

const (
	// Inserted means the token was new and has been persisted.
	Inserted InsertOutcome = iota + 1
	// AlreadyPresent means an unexpired record for the token already existed.
	AlreadyPresent
)

// String returns the outcome label used in logs and metrics.
func (o InsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

// TokenRecord is one stored token with its lifetime.
//
// Records are immutable once created: ExpiresAt is always CreatedAt + TTL.
type TokenRecord struct {
	Token     Token
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewTokenRecord creates a record created at now and expiring after ttl.
//
// now is truncated to milliseconds so the record round-trips through the
// persisted format without drift.
func NewTokenRecord(token Token, now time.Time, ttl time.Duration) TokenRecord {
	created := now.UTC().Truncate(time.Millisecond)
	return TokenRecord{
		Token:     token,
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

// IsExpired reports whether the record is expired at now (ExpiresAt <= now).
func (r TokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

type tokenRecordJSON struct {
	Token     string `json:"token"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

// MarshalJSON encodes timestamps with TimestampLayout.
func (r TokenRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(tokenRecordJSON{
		Token:     string(r.Token),
		CreatedAt: r.CreatedAt.UTC().Format(TimestampLayout),
		ExpiresAt: r.ExpiresAt.UTC().Format(TimestampLayout),
	})
}

// UnmarshalJSON decodes any RFC 3339 timestamp.
func (r *TokenRecord) UnmarshalJSON(data []byte) error {
	var raw tokenRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	created, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
	if err != nil {
		return err
	}
	expires, err := time.Parse(time.RFC3339Nano, raw.ExpiresAt)
	if err != nil {
		return err
	}
	*r = TokenRecord{
		Token:     Token(raw.Token),
		CreatedAt: created.UTC(),
		ExpiresAt: expires.UTC(),
	}
	return nil
}

// TokenStoreSnapshot is the persisted and served form of the token store.
//
// Count is derived: call Normalize before persisting or returning a snapshot.
type TokenStoreSnapshot struct {
	Count   int           `json:"count"`
	Records []TokenRecord `json:"tokens"`
}

// NewTokenStoreSnapshot returns an empty snapshot.
func NewTokenStoreSnapshot() *TokenStoreSnapshot {
	return &TokenStoreSnapshot{Records: []TokenRecord{}}
}

// Normalize recomputes Count from Records.
func (s *TokenStoreSnapshot) Normalize() {
	if s.Records == nil {
		s.Records = []TokenRecord{}
	}
	s.Count = len(s.Records)
}

// FilterExpired removes records expired at now, preserving order,
// and returns how many were removed.
func (s *TokenStoreSnapshot) FilterExpired(now time.Time) int {
	kept := s.Records[:0]
	for _, rec := range s.Records {
		if !rec.IsExpired(now) {
			kept = append(kept, rec)
		}
	}
	removed := len(s.Records) - len(kept)
	s.Records = kept
	s.Normalize()
	return removed
}

// Contains reports whether a record for token exists.
func (s *TokenStoreSnapshot) Contains(token Token) bool {
	for _, rec := range s.Records {
		if rec.Token == token {
			return true
		}
	}
	return false
}

// Append adds a record and recomputes Count.
func (s *TokenStoreSnapshot) Append(rec TokenRecord) {
	s.Records = append(s.Records, rec)
	s.Normalize()
}

// Clone returns a deep copy.
func (s *TokenStoreSnapshot) Clone() *TokenStoreSnapshot {
	out := &TokenStoreSnapshot{Records: make([]TokenRecord, len(s.Records))}
	copy(out.Records, s.Records)
	out.Normalize()
	return out
}
