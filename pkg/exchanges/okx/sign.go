package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// TimestampFormat selects how the signed timestamp is rendered. The venue's
// own documentation and several client libraries disagree here, so it is a
// per-provider setting rather than a constant.
type TimestampFormat string

const (
	// TimestampISO is ISO-8601 with millisecond precision, UTC, Z suffix.
	TimestampISO TimestampFormat = "iso8601"
	// TimestampEpochMilli is the raw millisecond epoch as a decimal string.
	TimestampEpochMilli TimestampFormat = "epoch_ms"
)

// Signer builds the venue authentication signature. Pure and deterministic:
// same inputs always produce the same signature.
type Signer struct {
	secret []byte
	format TimestampFormat
}

func NewSigner(secret string, format TimestampFormat) *Signer {
	if format == "" {
		format = TimestampISO
	}
	return &Signer{secret: []byte(secret), format: format}
}

// Timestamp renders t in the configured wire format.
func (s *Signer) Timestamp(t time.Time) string {
	switch s.format {
	case TimestampEpochMilli:
		return strconv.FormatInt(t.UnixMilli(), 10)
	default:
		return t.UTC().Format("2006-01-02T15:04:05.000Z")
	}
}

// Sign computes base64(HMAC-SHA256(secret, timestamp + METHOD + path + body)).
// path must include the query string when present.
func (s *Signer) Sign(timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(timestamp))
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte(path))
	h.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
