package migrate

import (
	"fmt"
	"strconv"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// step is a version-indexed repair. Every step must be a no-op when its
// target field is already well-formed.
type step struct {
	version string
	name    string
	apply   func(raw []byte) ([]byte, bool)
}

var steps = []step{
	{version: "1.1.0", name: "ensure color index present", apply: ensureColorIndex},
	{version: "1.2.0", name: "ensure every project has a color", apply: ensureProjectColors},
	{version: "2.0.0", name: "lift legacy timestamps", apply: liftTimestamps},
}

// applySteps runs every step newer than from, in ascending order
func applySteps(raw []byte, from string) ([]byte, []string) {
	var repairs []string
	for _, s := range steps {
		if compareVersions(s.version, from) <= 0 {
			continue
		}
		out, changed := s.apply(raw)
		if changed {
			raw = out
			repairs = append(repairs, fmt.Sprintf("%s: %s", s.version, s.name))
		}
	}
	return raw, repairs
}

// ensureColorIndex renames the pre-1.1 colorIndex field
func ensureColorIndex(raw []byte) ([]byte, bool) {
	if gjson.GetBytes(raw, "nextColorIndex").Exists() {
		return raw, false
	}
	legacy := gjson.GetBytes(raw, "colorIndex")
	if !legacy.Exists() {
		return raw, false
	}
	out, err := sjson.SetRawBytes(raw, "nextColorIndex", []byte(legacy.Raw))
	if err != nil {
		return raw, false
	}
	out, err = sjson.DeleteBytes(out, "colorIndex")
	if err != nil {
		return raw, false
	}
	return out, true
}

// ensureProjectColors assigns palette colors by position to projects stored before colors existed
func ensureProjectColors(raw []byte) ([]byte, bool) {
	projects := gjson.GetBytes(raw, "projects")
	if !projects.IsArray() {
		return raw, false
	}
	changed := false
	for i, p := range projects.Array() {
		if !p.IsObject() {
			continue
		}
		if c := p.Get("color"); c.Type == gjson.String && c.Str != "" {
			continue
		}
		out, err := sjson.SetBytes(raw, "projects."+strconv.Itoa(i)+".color", models.PaletteColor(i))
		if err != nil {
			continue
		}
		raw = out
		changed = true
	}
	return raw, changed
}

// liftTimestamps moves snake_case and lastModified timestamps to createdAt/updatedAt
func liftTimestamps(raw []byte) ([]byte, bool) {
	changed := false
	moves := []struct{ from, to string }{
		{"created_at", "createdAt"},
		{"updated_at", "updatedAt"},
		{"lastModified", "updatedAt"},
	}
	for _, mv := range moves {
		legacy := gjson.GetBytes(raw, mv.from)
		if !legacy.Exists() {
			continue
		}
		out := raw
		var err error
		if !gjson.GetBytes(out, mv.to).Exists() {
			out, err = sjson.SetRawBytes(out, mv.to, []byte(legacy.Raw))
			if err != nil {
				continue
			}
		}
		out, err = sjson.DeleteBytes(out, mv.from)
		if err != nil {
			continue
		}
		raw = out
		changed = true
	}
	return raw, changed
}
