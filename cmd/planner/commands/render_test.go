package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/benvon/schedule-builder/internal/models"
)

func TestPrintProjects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		bundle *models.Bundle
		want   []string
	}{
		{
			name:   "empty",
			bundle: &models.Bundle{},
			want:   []string{"No projects"},
		},
		{
			name: "progress",
			bundle: &models.Bundle{Projects: []models.Project{{
				ID:    "p1",
				Name:  "Writing",
				Color: "#FF6B6B",
				SubTasks: []models.SubTask{
					{ID: "s1", Text: "Outline", Completed: true},
					{ID: "s2", Text: "Draft"},
				},
			}}},
			want: []string{"NAME", "Writing", "#FF6B6B", "1/2"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			printProjects(&buf, tt.bundle)
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestPrintSchedule(t *testing.T) {
	t.Parallel()

	b := &models.Bundle{Schedule: models.EmptySchedule()}
	b.Schedule["slot-afternoon-14"] = []models.ScheduledTask{{
		ID:                      "t1",
		ProjectID:               "p1",
		ProjectName:             "Writing",
		OriginalProjectSubTasks: []models.SubTask{{ID: "s1", Text: "Outline", Completed: true}},
	}}

	var buf bytes.Buffer
	printSchedule(&buf, b, false)
	out := buf.String()
	for _, w := range []string{"AFTERNOON", "slot-afternoon-14", "(1/3)", "Writing", "[x] Outline"} {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
	if strings.Contains(out, "MORNING") {
		t.Errorf("empty sections shown without --all:\n%s", out)
	}

	buf.Reset()
	printSchedule(&buf, b, true)
	if !strings.Contains(buf.String(), "slot-morning-08") {
		t.Errorf("--all output missing empty slots:\n%s", buf.String())
	}

	buf.Reset()
	printSchedule(&buf, &models.Bundle{Schedule: models.EmptySchedule()}, false)
	if !strings.Contains(buf.String(), "Nothing scheduled") {
		t.Errorf("empty schedule output = %q", buf.String())
	}
}
