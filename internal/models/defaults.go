package models

import (
	"time"

	"github.com/google/uuid"
)

// starterProjects is the curated set a new user sees before building anything
var starterProjects = []struct {
	name     string
	subTasks []string
}{
	{name: "Deep Work", subTasks: []string{"Pick one focus task", "Silence notifications"}},
	{name: "Exercise", subTasks: []string{"Warm up", "Main workout"}},
	{name: "Learning", subTasks: []string{"Read a chapter"}},
	{name: "Admin", subTasks: []string{"Inbox zero", "Plan tomorrow"}},
}

// DefaultProjects returns fresh copies of the starter projects with new ids and palette colors
func DefaultProjects() []Project {
	projects := make([]Project, 0, len(starterProjects))
	for i, sp := range starterProjects {
		subTasks := make([]SubTask, 0, len(sp.subTasks))
		for _, text := range sp.subTasks {
			subTasks = append(subTasks, SubTask{ID: uuid.NewString(), Text: text})
		}
		projects = append(projects, Project{
			ID:       uuid.NewString(),
			Name:     sp.name,
			SubTasks: subTasks,
			Color:    PaletteColor(i),
		})
	}
	return projects
}

// DefaultBundle builds the bundle used when no stored data exists
func DefaultBundle(now time.Time) *Bundle {
	projects := DefaultProjects()
	created := now.UTC()
	return &Bundle{
		Projects:       projects,
		Schedule:       EmptySchedule(),
		NextColorIndex: len(projects) % len(Palette),
		CreatedAt:      &created,
		AppVersion:     AppVersion,
	}
}
