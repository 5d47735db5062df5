// Package schedule implements the mutations a user can apply to a bundle.
//
// Every function mutates the bundle it is given in place and either succeeds
// completely or returns an error without touching it. Callers that need to
// keep the previous state (the sync controller) pass a clone.
package schedule

import (
	"errors"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/validation"
	"github.com/google/uuid"
)

var (
	// ErrSlotFull is returned when a slot already holds MaxTasksPerSlot tasks
	ErrSlotFull = errors.New("time slot is full")
	// ErrSameSlot is returned when moving a task onto the slot it is already in
	ErrSameSlot = errors.New("task is already in that time slot")
	// ErrEmptyName is returned when a project would be left without a name
	ErrEmptyName = errors.New("project name cannot be empty")
	// ErrProjectNotFound is returned for an unknown project id
	ErrProjectNotFound = errors.New("project not found")
	// ErrSubTaskNotFound is returned for an unknown sub-task id
	ErrSubTaskNotFound = errors.New("sub-task not found")
	// ErrTaskNotFound is returned for an unknown scheduled task id
	ErrTaskNotFound = errors.New("scheduled task not found")
	// ErrUnknownSlot is returned for a slot id outside the planning day
	ErrUnknownSlot = errors.New("unknown time slot")
	// ErrInvalidOrder is returned when a reorder index is out of range
	ErrInvalidOrder = errors.New("invalid project position")
)

// IDFunc generates ids for new entities
type IDFunc func() string

// NewID is the default IDFunc
var NewID IDFunc = uuid.NewString

// AddProject appends a project colored from the palette and advances the color index
func AddProject(b *models.Bundle, name string, newID IDFunc) (*models.Project, error) {
	name = validation.SanitizeText(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if newID == nil {
		newID = NewID
	}
	p := models.Project{
		ID:       newID(),
		Name:     name,
		SubTasks: []models.SubTask{},
		Color:    models.PaletteColor(b.NextColorIndex),
	}
	b.Projects = append(b.Projects, p)
	b.NextColorIndex = (b.NextColorIndex + 1) % len(models.Palette)
	return &b.Projects[len(b.Projects)-1], nil
}

// RenameProject renames a project and every scheduled copy of it
func RenameProject(b *models.Bundle, projectID, name string) error {
	name = validation.SanitizeText(name)
	if name == "" {
		return ErrEmptyName
	}
	i := b.FindProject(projectID)
	if i < 0 {
		return ErrProjectNotFound
	}
	b.Projects[i].Name = name
	forEachCopy(b, projectID, func(t *models.ScheduledTask) {
		t.ProjectName = name
	})
	return nil
}

// RemoveProject deletes a project and every scheduled task that references it
func RemoveProject(b *models.Bundle, projectID string) error {
	i := b.FindProject(projectID)
	if i < 0 {
		return ErrProjectNotFound
	}
	b.Projects = append(b.Projects[:i], b.Projects[i+1:]...)
	for slotID, tasks := range b.Schedule {
		kept := tasks[:0]
		for _, t := range tasks {
			if t.ProjectID != projectID {
				kept = append(kept, t)
			}
		}
		b.Schedule[slotID] = kept
	}
	return nil
}

// ReorderProjects moves the project at position from to position to
func ReorderProjects(b *models.Bundle, from, to int) error {
	n := len(b.Projects)
	if from < 0 || from >= n || to < 0 || to >= n {
		return ErrInvalidOrder
	}
	if from == to {
		return nil
	}
	p := b.Projects[from]
	b.Projects = append(b.Projects[:from], b.Projects[from+1:]...)
	b.Projects = append(b.Projects[:to], append([]models.Project{p}, b.Projects[to:]...)...)
	return nil
}

// AddSubTask appends a sub-task to a project. Already scheduled copies are not changed.
func AddSubTask(b *models.Bundle, projectID, text string, newID IDFunc) (*models.SubTask, error) {
	i := b.FindProject(projectID)
	if i < 0 {
		return nil, ErrProjectNotFound
	}
	if newID == nil {
		newID = NewID
	}
	st := models.SubTask{ID: newID(), Text: text}
	p := &b.Projects[i]
	p.SubTasks = append(p.SubTasks, st)
	return &p.SubTasks[len(p.SubTasks)-1], nil
}

// EditSubTask changes a sub-task's text on the project and on every scheduled copy
func EditSubTask(b *models.Bundle, projectID, subTaskID, text string) error {
	return updateSubTask(b, projectID, subTaskID, func(st *models.SubTask) {
		st.Text = text
	})
}

// ToggleSubTask flips a sub-task's completion on the project and on every scheduled copy
func ToggleSubTask(b *models.Bundle, projectID, subTaskID string) error {
	i := b.FindProject(projectID)
	if i < 0 {
		return ErrProjectNotFound
	}
	j := findSubTask(b.Projects[i].SubTasks, subTaskID)
	if j < 0 {
		return ErrSubTaskNotFound
	}
	completed := !b.Projects[i].SubTasks[j].Completed
	return updateSubTask(b, projectID, subTaskID, func(st *models.SubTask) {
		st.Completed = completed
	})
}

// RemoveSubTask deletes a sub-task from a project. Already scheduled copies are not changed.
func RemoveSubTask(b *models.Bundle, projectID, subTaskID string) error {
	i := b.FindProject(projectID)
	if i < 0 {
		return ErrProjectNotFound
	}
	p := &b.Projects[i]
	j := findSubTask(p.SubTasks, subTaskID)
	if j < 0 {
		return ErrSubTaskNotFound
	}
	p.SubTasks = append(p.SubTasks[:j], p.SubTasks[j+1:]...)
	return nil
}

// ScheduleProject snapshots a project into a new task at the end of a slot
func ScheduleProject(b *models.Bundle, projectID, slotID string, newID IDFunc) (*models.ScheduledTask, error) {
	if !models.IsTimeSlot(slotID) {
		return nil, ErrUnknownSlot
	}
	i := b.FindProject(projectID)
	if i < 0 {
		return nil, ErrProjectNotFound
	}
	if len(b.Schedule[slotID]) >= models.MaxTasksPerSlot {
		return nil, ErrSlotFull
	}
	if newID == nil {
		newID = NewID
	}
	p := b.Projects[i]
	subTasks := make([]models.SubTask, len(p.SubTasks))
	copy(subTasks, p.SubTasks)
	task := models.ScheduledTask{
		ID:                      newID(),
		ProjectID:               p.ID,
		ProjectName:             p.Name,
		ProjectColor:            p.Color,
		OriginalProjectSubTasks: subTasks,
	}
	if b.Schedule == nil {
		b.Schedule = models.EmptySchedule()
	}
	b.Schedule[slotID] = append(b.Schedule[slotID], task)
	tasks := b.Schedule[slotID]
	return &tasks[len(tasks)-1], nil
}

// MoveTask moves a scheduled task to the end of another slot
func MoveTask(b *models.Bundle, taskID, toSlotID string) error {
	if !models.IsTimeSlot(toSlotID) {
		return ErrUnknownSlot
	}
	fromSlotID, i, ok := b.FindTask(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	if fromSlotID == toSlotID {
		return ErrSameSlot
	}
	if len(b.Schedule[toSlotID]) >= models.MaxTasksPerSlot {
		return ErrSlotFull
	}
	from := b.Schedule[fromSlotID]
	task := from[i]
	b.Schedule[fromSlotID] = append(from[:i], from[i+1:]...)
	b.Schedule[toSlotID] = append(b.Schedule[toSlotID], task)
	return nil
}

// DeleteTask removes a scheduled task from its slot
func DeleteTask(b *models.Bundle, taskID string) error {
	slotID, i, ok := b.FindTask(taskID)
	if !ok {
		return ErrTaskNotFound
	}
	tasks := b.Schedule[slotID]
	b.Schedule[slotID] = append(tasks[:i], tasks[i+1:]...)
	return nil
}

func updateSubTask(b *models.Bundle, projectID, subTaskID string, fn func(*models.SubTask)) error {
	i := b.FindProject(projectID)
	if i < 0 {
		return ErrProjectNotFound
	}
	p := &b.Projects[i]
	j := findSubTask(p.SubTasks, subTaskID)
	if j < 0 {
		return ErrSubTaskNotFound
	}
	fn(&p.SubTasks[j])
	forEachCopy(b, projectID, func(t *models.ScheduledTask) {
		if k := findSubTask(t.OriginalProjectSubTasks, subTaskID); k >= 0 {
			fn(&t.OriginalProjectSubTasks[k])
		}
	})
	return nil
}

// forEachCopy visits every scheduled task that was copied from projectID
func forEachCopy(b *models.Bundle, projectID string, fn func(*models.ScheduledTask)) {
	for _, tasks := range b.Schedule {
		for k := range tasks {
			if tasks[k].ProjectID == projectID {
				fn(&tasks[k])
			}
		}
	}
}

func findSubTask(subTasks []models.SubTask, id string) int {
	for i := range subTasks {
		if subTasks[i].ID == id {
			return i
		}
	}
	return -1
}
