// Package migrate upgrades stored schedule payloads of any version, or of no
// recognisable shape at all, into a valid current-version bundle.
//
// Migrate never fails. Unknown or corrupt input degrades field by field to
// defaults, so callers can hand it bytes straight from disk, the network, or
// a hand-edited export.
package migrate

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// OldestVersion is assumed for payloads that declare no version
const OldestVersion = "1.0.0"

// Result describes a single migration run
type Result struct {
	Bundle      *models.Bundle
	FromVersion string
	// Repairs lists what had to be synthesized or dropped, for logging
	Repairs []string
}

// Repaired reports whether the input needed any change beyond the version stamp
func (r Result) Repaired() bool {
	return len(r.Repairs) > 0
}

// Migrator runs the repair pipeline. The zero value is not usable; use New.
type Migrator struct {
	newID  func() string
	logger *zap.Logger
}

// Option configures a Migrator
type Option func(*Migrator)

// WithIDGenerator overrides how missing ids are synthesized
func WithIDGenerator(fn func() string) Option {
	return func(m *Migrator) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// WithLogger sets the logger used to report repairs
func WithLogger(logger *zap.Logger) Option {
	return func(m *Migrator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Migrator
func New(opts ...Option) *Migrator {
	m := &Migrator{
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMigrator = New()

// Migrate repairs raw with the default Migrator
func Migrate(raw []byte) *models.Bundle {
	return defaultMigrator.Migrate(raw)
}

// Migrate repairs raw and returns the bundle
func (m *Migrator) Migrate(raw []byte) *models.Bundle {
	return m.Run(raw).Bundle
}

// MigrateValue repairs an already-decoded value (e.g. from a generic JSON decode)
func (m *Migrator) MigrateValue(v any) *models.Bundle {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = nil
	}
	return m.Migrate(raw)
}

// Run repairs raw and reports what was changed
func (m *Migrator) Run(raw []byte) Result {
	var repairs []string

	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		repairs = append(repairs, "payload not valid JSON, treated as empty")
		raw = []byte("{}")
	} else if !gjson.ParseBytes(raw).IsObject() {
		repairs = append(repairs, "payload not a JSON object, treated as empty")
		raw = []byte("{}")
	}

	from := declaredVersion(raw)
	raw, stepRepairs := applySteps(raw, from)
	repairs = append(repairs, stepRepairs...)

	c := &coercer{newID: m.newID}
	bundle := c.bundle(gjson.ParseBytes(raw))
	repairs = append(repairs, c.repairs...)

	if len(repairs) > 0 {
		m.logger.Debug("schedule_payload_repaired",
			zap.String("from_version", from),
			zap.Int("repair_count", len(repairs)),
			zap.Strings("repairs", repairs),
		)
	}

	return Result{Bundle: bundle, FromVersion: from, Repairs: repairs}
}

// declaredVersion reads version, falling back to appVersion, then to the oldest known version
func declaredVersion(raw []byte) string {
	for _, key := range []string{"version", "appVersion"} {
		v := gjson.GetBytes(raw, key)
		if v.Type == gjson.String {
			if s := strings.TrimSpace(v.Str); s != "" {
				if _, ok := parseVersion(s); ok {
					return s
				}
			}
		}
		if v.Type == gjson.Number {
			// Very old clients stored the version as a bare number
			s := strconv.FormatFloat(v.Num, 'f', -1, 64)
			if _, ok := parseVersion(s); ok {
				return s
			}
		}
	}
	return OldestVersion
}

// parseVersion parses "major[.minor[.patch]]"
func parseVersion(v string) ([3]int, bool) {
	var out [3]int
	v = strings.TrimPrefix(v, "v")
	parts := strings.Split(v, ".")
	if len(parts) == 0 || len(parts) > 3 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return out, false
		}
		out[i] = n
	}
	return out, true
}

// compareVersions returns -1, 0 or 1. Unparseable versions sort as oldest.
func compareVersions(a, b string) int {
	va, _ := parseVersion(a)
	vb, _ := parseVersion(b)
	for i := range va {
		switch {
		case va[i] < vb[i]:
			return -1
		case va[i] > vb[i]:
			return 1
		}
	}
	return 0
}
