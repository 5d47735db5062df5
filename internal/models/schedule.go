package models

import (
	"time"
)

const (
	// AppVersion is the schema version stamped on every bundle written by this build
	AppVersion = "2.0.0"
	// MaxTasksPerSlot is the maximum number of scheduled tasks a single time slot can hold
	MaxTasksPerSlot = 3
	// DefaultSubTaskText is used when a stored sub-task has no text
	DefaultSubTaskText = "Untitled Task"
)

// Palette is the fixed set of project colors, assigned round-robin via Bundle.NextColorIndex
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E9",
	"#F8C471",
	"#82E0AA",
}

// PaletteColor returns the palette entry for an index, wrapping modulo the palette size
func PaletteColor(index int) string {
	n := len(Palette)
	return Palette[((index%n)+n)%n]
}

// SubTask is a checklist item owned by a project (or copied into a scheduled task)
type SubTask struct {
	ID        string `json:"id" validate:"required"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Project is a user-defined unit of work that can be dropped into time slots
type Project struct {
	ID       string    `json:"id" validate:"required"`
	Name     string    `json:"name" validate:"required"`
	SubTasks []SubTask `json:"subTasks" validate:"dive"`
	Color    string    `json:"color" validate:"required,hexcolor"`
}

// ScheduledTask is a snapshot copy of a project placed into a time slot
type ScheduledTask struct {
	ID                      string    `json:"id" validate:"required"`
	ProjectID               string    `json:"projectId" validate:"required"`
	ProjectName             string    `json:"projectName"`
	ProjectColor            string    `json:"projectColor"`
	OriginalProjectSubTasks []SubTask `json:"originalProjectSubTasks" validate:"dive"`
}

// ScheduleData maps a time slot id to its ordered list of scheduled tasks
type ScheduleData map[string][]ScheduledTask

// Bundle is the unit of persistence: everything a user has built, read and written whole
type Bundle struct {
	Projects       []Project    `json:"projects" validate:"dive"`
	Schedule       ScheduleData `json:"schedule" validate:"dive,keys,slot_id,endkeys,max=3,dive"`
	NextColorIndex int          `json:"nextColorIndex" validate:"min=0"`
	CreatedAt      *time.Time   `json:"createdAt"`
	UpdatedAt      *time.Time   `json:"updatedAt"`
	AppVersion     string       `json:"appVersion"`
}

// FindProject returns the index of the project with the given id, or -1
func (b *Bundle) FindProject(id string) int {
	for i := range b.Projects {
		if b.Projects[i].ID == id {
			return i
		}
	}
	return -1
}

// FindTask returns the slot and index of the scheduled task with the given id
func (b *Bundle) FindTask(id string) (string, int, bool) {
	for slotID, tasks := range b.Schedule {
		for i := range tasks {
			if tasks[i].ID == id {
				return slotID, i, true
			}
		}
	}
	return "", -1, false
}

// IsEmpty reports whether the bundle carries no user content worth migrating
func (b *Bundle) IsEmpty() bool {
	if b == nil {
		return true
	}
	if len(b.Projects) > 0 {
		return false
	}
	for _, tasks := range b.Schedule {
		if len(tasks) > 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the bundle
func (b *Bundle) Clone() *Bundle {
	if b == nil {
		return nil
	}
	out := &Bundle{
		Projects:       make([]Project, len(b.Projects)),
		Schedule:       make(ScheduleData, len(b.Schedule)),
		NextColorIndex: b.NextColorIndex,
		AppVersion:     b.AppVersion,
	}
	for i, p := range b.Projects {
		p.SubTasks = cloneSubTasks(p.SubTasks)
		out.Projects[i] = p
	}
	for slotID, tasks := range b.Schedule {
		copied := make([]ScheduledTask, len(tasks))
		for i, t := range tasks {
			t.OriginalProjectSubTasks = cloneSubTasks(t.OriginalProjectSubTasks)
			copied[i] = t
		}
		out.Schedule[slotID] = copied
	}
	if b.CreatedAt != nil {
		t := *b.CreatedAt
		out.CreatedAt = &t
	}
	if b.UpdatedAt != nil {
		t := *b.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func cloneSubTasks(in []SubTask) []SubTask {
	out := make([]SubTask, len(in))
	copy(out, in)
	return out
}
