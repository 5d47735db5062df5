package migrate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/validation"
	"github.com/tidwall/gjson"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// coercer holds state for one structural pass
type coercer struct {
	newID   func() string
	repairs []string
}

func (c *coercer) repair(format string, args ...any) {
	c.repairs = append(c.repairs, fmt.Sprintf(format, args...))
}

func (c *coercer) bundle(root gjson.Result) *models.Bundle {
	b := &models.Bundle{
		AppVersion: models.AppVersion,
	}

	projects := root.Get("projects")
	if projects.IsArray() {
		b.Projects = c.projects(projects)
	} else {
		c.repair("projects not an array, replaced with starter set")
		b.Projects = models.DefaultProjects()
	}

	b.Schedule = c.schedule(root.Get("schedule"), b.Projects)
	b.NextColorIndex = c.colorIndex(root.Get("nextColorIndex"), len(b.Projects))
	b.CreatedAt = timestamp(root.Get("createdAt"))
	b.UpdatedAt = timestamp(root.Get("updatedAt"))

	return b
}

func (c *coercer) projects(arr gjson.Result) []models.Project {
	items := arr.Array()
	out := make([]models.Project, 0, len(items))
	seen := make(map[string]bool, len(items))

	for i, item := range items {
		p := models.Project{}

		p.ID = c.uniqueID(item.Get("id"), seen, fmt.Sprintf("project %d", i))

		if name := item.Get("name"); name.Type == gjson.String && validation.SanitizeText(name.Str) != "" {
			p.Name = name.Str
		} else {
			p.Name = fmt.Sprintf("Project %d", i+1)
			c.repair("project %d: default name", i)
		}

		if color := item.Get("color"); color.Type == gjson.String && hexColor.MatchString(color.Str) {
			p.Color = color.Str
		} else {
			p.Color = models.PaletteColor(i)
			c.repair("project %d: palette color", i)
		}

		p.SubTasks = c.subTasks(item.Get("subTasks"), fmt.Sprintf("project %d", i))
		out = append(out, p)
	}
	return out
}

func (c *coercer) subTasks(arr gjson.Result, owner string) []models.SubTask {
	if !arr.IsArray() {
		if arr.Exists() {
			c.repair("%s: sub-tasks not an array", owner)
		}
		return []models.SubTask{}
	}
	items := arr.Array()
	out := make([]models.SubTask, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		st := models.SubTask{}
		st.ID = c.uniqueID(item.Get("id"), seen, fmt.Sprintf("%s sub-task %d", owner, i))
		if text := item.Get("text"); text.Type == gjson.String {
			st.Text = text.Str
		} else {
			st.Text = models.DefaultSubTaskText
			c.repair("%s sub-task %d: default text", owner, i)
		}
		st.Completed = truthy(item.Get("completed"))
		out = append(out, st)
	}
	return out
}

func (c *coercer) schedule(sched gjson.Result, projects []models.Project) models.ScheduleData {
	out := models.EmptySchedule()

	if !sched.IsObject() {
		if sched.Exists() && sched.Type != gjson.Null {
			c.repair("schedule not an object, reset")
		}
		return out
	}

	stored := make(map[string]gjson.Result)
	sched.ForEach(func(key, value gjson.Result) bool {
		if models.IsTimeSlot(key.String()) {
			stored[key.String()] = value
		} else {
			c.repair("schedule: dropped unknown slot %q", key.String())
		}
		return true
	})

	byID := make(map[string]*models.Project, len(projects))
	for i := range projects {
		byID[projects[i].ID] = &projects[i]
	}
	seen := make(map[string]bool)

	// Iterate in slot order so generated ids and truncation are deterministic
	for _, slot := range models.TimeSlots() {
		value, ok := stored[slot.ID]
		if !ok {
			continue
		}
		if !value.IsArray() {
			c.repair("schedule %s: not an array, reset", slot.ID)
			continue
		}
		tasks := make([]models.ScheduledTask, 0, models.MaxTasksPerSlot)
		for i, item := range value.Array() {
			owner := fmt.Sprintf("schedule %s task %d", slot.ID, i)
			pid := item.Get("projectId")
			project, known := byID[pid.String()]
			if (pid.Type != gjson.String && pid.Type != gjson.Number) || !known {
				c.repair("%s: dropped, project %q not found", owner, pid.String())
				continue
			}
			if len(tasks) == models.MaxTasksPerSlot {
				c.repair("%s: dropped, slot over capacity", owner)
				continue
			}
			tasks = append(tasks, c.scheduledTask(item, project, seen, owner))
		}
		out[slot.ID] = tasks
	}
	return out
}

func (c *coercer) scheduledTask(item gjson.Result, project *models.Project, seen map[string]bool, owner string) models.ScheduledTask {
	t := models.ScheduledTask{ProjectID: project.ID}
	t.ID = c.uniqueID(item.Get("id"), seen, owner)

	if name := item.Get("projectName"); name.Type == gjson.String && name.Str != "" {
		t.ProjectName = name.Str
	} else {
		t.ProjectName = project.Name
		c.repair("%s: project name from source", owner)
	}

	if color := item.Get("projectColor"); color.Type == gjson.String && hexColor.MatchString(color.Str) {
		t.ProjectColor = color.Str
	} else {
		t.ProjectColor = project.Color
		c.repair("%s: project color from source", owner)
	}

	if subs := item.Get("originalProjectSubTasks"); subs.IsArray() {
		t.OriginalProjectSubTasks = c.subTasks(subs, owner)
	} else {
		t.OriginalProjectSubTasks = make([]models.SubTask, len(project.SubTasks))
		copy(t.OriginalProjectSubTasks, project.SubTasks)
		c.repair("%s: sub-tasks copied from source", owner)
	}
	return t
}

func (c *coercer) colorIndex(v gjson.Result, projectCount int) int {
	fallback := projectCount % len(models.Palette)
	switch v.Type {
	case gjson.Number:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) || v.Num < 0 || v.Num > math.MaxInt32 {
			break
		}
		return int(v.Num)
	case gjson.String:
		if n, err := strconv.Atoi(strings.TrimSpace(v.Str)); err == nil && n >= 0 {
			c.repair("nextColorIndex: parsed from string")
			return n
		}
	}
	if v.Exists() {
		c.repair("nextColorIndex: invalid, reset")
	}
	return fallback
}

// uniqueID keeps a usable stored id or synthesizes a fresh one, recording it in seen
func (c *coercer) uniqueID(v gjson.Result, seen map[string]bool, owner string) string {
	var id string
	switch v.Type {
	case gjson.String:
		id = strings.TrimSpace(v.Str)
	case gjson.Number:
		id = v.Raw
	}
	if id == "" {
		id = c.newID()
		c.repair("%s: synthesized id", owner)
	} else if seen[id] {
		id = c.newID()
		c.repair("%s: duplicate id replaced", owner)
	}
	seen[id] = true
	return id
}

// truthy coerces JSON booleans, numbers and common strings to bool
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "1", "yes", "y", "on":
			return true
		}
	}
	return false
}

// timestamp accepts RFC 3339 strings and epoch milliseconds
func timestamp(v gjson.Result) *time.Time {
	var t time.Time
	switch v.Type {
	case gjson.String:
		parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v.Str))
		if err != nil {
			return nil
		}
		t = parsed
	case gjson.Number:
		if v.Num <= 0 || v.Num > maxEpochMillis {
			return nil
		}
		t = time.UnixMilli(int64(v.Num))
	default:
		return nil
	}
	t = t.UTC()
	// time.Time only marshals years 0 through 9999
	if y := t.Year(); y < 0 || y > 9999 {
		return nil
	}
	return &t
}

// maxEpochMillis is 9999-12-31T23:59:59.999Z
const maxEpochMillis = 253402300799999
