package models

import "time"

// Rate limit scopes. Each scope has its own stored rate and its own counters.
const (
	RateScopeAuth     = "auth"
	RateScopeSchedule = "schedule"
)

// RateScopes lists every scope the server limits
var RateScopes = []string{RateScopeAuth, RateScopeSchedule}

// CorsPolicy is the set of browser origins allowed to call the API
type CorsPolicy struct {
	Origins          []string  `json:"origins"`
	AllowCredentials bool      `json:"allow_credentials"`
	MaxAge           int       `json:"max_age"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RateLimit is the request rate for one scope in ulule/limiter format ("5-S", "100-M")
type RateLimit struct {
	Scope     string    `json:"scope"`
	Rate      string    `json:"rate"`
	UpdatedAt time.Time `json:"updated_at"`
}
