package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Length caps for request-derived values written to logs
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128 // UUIDs are 36
	MaxIPLength            = 64
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
)

// SanitizeString makes s safe to log: invalid UTF-8 and control characters
// other than whitespace are dropped, and the result is cut at maxLength bytes.
// A non-positive maxLength means MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// Path is the "path" field for a request URL path
func Path(path string) zap.Field {
	return zap.String("path", SanitizeString(path, MaxPathLength))
}

// UserID is the "user_id" field
func UserID(id string) zap.Field {
	return zap.String("user_id", SanitizeString(id, MaxUserIDLength))
}

// ClientIP is the "ip" field for a caller address taken from request headers
func ClientIP(ip string) zap.Field {
	return zap.String("ip", SanitizeString(ip, MaxIPLength))
}

// Err is the "error" field with the message sanitized. Use it for errors
// that may echo client input.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", SanitizeString(err.Error(), MaxErrorMessageLength))
}
