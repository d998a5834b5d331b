package partitions

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/hilthontt/tenantwire/internal/domain"
)

var errInvalidCursor = errors.New("cursor is malformed")

// Cursors are opaque to clients: the listing position of the last record of
// a page, base64url encoded.
func encodeCursor(rec domain.AuditRecord) string {
	raw := rec.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + rec.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (domain.AuditCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return domain.AuditCursor{}, errInvalidCursor
	}

	ts, id, found := strings.Cut(string(raw), "|")
	if !found || id == "" {
		return domain.AuditCursor{}, errInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.AuditCursor{}, errInvalidCursor
	}

	return domain.AuditCursor{Timestamp: timestamp, ID: id}, nil
}
