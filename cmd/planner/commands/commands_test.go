package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

// planner runs the CLI against a private data file and returns stdout
type planner struct {
	t          *testing.T
	configPath string
}

func newPlanner(t *testing.T) *planner {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	cfg := "data_path: " + filepath.Join(dir, "local.db") + "\ndebounce: 10ms\n"
	if err := os.WriteFile(configPath, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return &planner{t: t, configPath: configPath}
}

func (p *planner) run(args ...string) (string, error) {
	p.t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", p.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (p *planner) mustRun(args ...string) string {
	p.t.Helper()
	out, err := p.run(args...)
	if err != nil {
		p.t.Fatalf("planner %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func (p *planner) export() gjson.Result {
	p.t.Helper()
	return gjson.Parse(p.mustRun("export"))
}

func TestPlanner_LocalWorkflow(t *testing.T) {
	p := newPlanner(t)

	// A fresh device starts with the starter projects
	if n := p.export().Get("projects.#").Int(); n == 0 {
		t.Fatal("expected starter projects on first run")
	}

	p.mustRun("project", "add", "Deep", "Work")
	doc := p.export()
	projectID := doc.Get(`projects.#(name=="Deep Work").id`).String()
	if projectID == "" {
		t.Fatalf("project not persisted: %s", doc.Raw)
	}

	p.mustRun("subtask", "add", projectID, "Outline chapter")
	subTaskID := p.export().Get(`projects.#(id=="` + projectID + `").subTasks.0.id`).String()
	if subTaskID == "" {
		t.Fatal("sub-task not persisted")
	}

	p.mustRun("schedule", "add", projectID, "slot-morning-09")
	doc = p.export()
	if got := doc.Get("schedule.slot-morning-09.0.projectName").String(); got != "Deep Work" {
		t.Errorf("scheduled projectName = %q, want Deep Work", got)
	}

	p.mustRun("subtask", "toggle", projectID, subTaskID)
	doc = p.export()
	if !doc.Get(`projects.#(id=="` + projectID + `").subTasks.0.completed`).Bool() {
		t.Error("toggle did not mark the project sub-task complete")
	}
	if !doc.Get("schedule.slot-morning-09.0.originalProjectSubTasks.0.completed").Bool() {
		t.Error("toggle did not reach the scheduled copy")
	}

	taskID := doc.Get("schedule.slot-morning-09.0.id").String()
	p.mustRun("schedule", "move", taskID, "slot-evening-19")
	doc = p.export()
	if doc.Get("schedule.slot-morning-09.#").Int() != 0 || doc.Get("schedule.slot-evening-19.#").Int() != 1 {
		t.Errorf("move did not relocate the task: %s", doc.Get("schedule").Raw)
	}

	out := p.mustRun("schedule", "show")
	if !strings.Contains(out, "Deep Work") || !strings.Contains(out, "EVENING") {
		t.Errorf("schedule show output missing task:\n%s", out)
	}

	p.mustRun("project", "rm", projectID)
	doc = p.export()
	if doc.Get(`projects.#(id=="` + projectID + `")`).Exists() {
		t.Error("project still present after rm")
	}
	if doc.Get("schedule.slot-evening-19.#").Int() != 0 {
		t.Error("removing a project must drop its scheduled tasks")
	}

	status := p.mustRun("status")
	if !strings.Contains(status, "not logged in") || !strings.Contains(status, "Sync:      ok") {
		t.Errorf("unexpected status:\n%s", status)
	}
}

func TestPlanner_Errors(t *testing.T) {
	p := newPlanner(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown project", []string{"subtask", "add", "nope", "text"}},
		{"unknown slot", []string{"schedule", "add", "nope", "slot-midnight"}},
		{"bad position", []string{"project", "move", "a", "1"}},
		{"login without api", []string{"login"}},
		{"missing import file", []string{"import", filepath.Join(t.TempDir(), "missing.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.run(tt.args...); err == nil {
				t.Errorf("planner %v should fail", tt.args)
			}
		})
	}
}

func TestPlanner_ImportRepairsLegacyExport(t *testing.T) {
	p := newPlanner(t)

	legacy := `{
		"projects": [{"id": "p1", "name": "Legacy", "subTasks": [{"id": "s1"}]}],
		"schedule": {"slot-morning-08": [{"id": "t1", "projectId": "p1"}, {"id": "t2", "projectId": "ghost"}]},
		"appVersion": "1.0.0"
	}`
	path := filepath.Join(t.TempDir(), "export.json")
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write export: %v", err)
	}

	out := p.mustRun("import", path)
	if !strings.Contains(out, "Imported 1 projects") {
		t.Errorf("import output = %q", out)
	}

	doc := p.export()
	if doc.Get("projects.0.color").String() == "" {
		t.Error("import should assign a color")
	}
	if got := doc.Get("projects.0.subTasks.0.text").String(); got != "Untitled Task" {
		t.Errorf("missing sub-task text = %q, want Untitled Task", got)
	}
	if n := doc.Get("schedule.slot-morning-08.#").Int(); n != 1 {
		t.Errorf("orphan task not dropped, slot has %d tasks", n)
	}
}

func TestPlanner_Logout(t *testing.T) {
	p := newPlanner(t)

	p.mustRun("project", "add", "Temp")
	out := p.mustRun("logout")
	if !strings.Contains(out, "Not logged in") {
		t.Errorf("logout output = %q", out)
	}
	if p.export().Get(`projects.#(name=="Temp")`).Exists() {
		t.Error("logout should clear device data")
	}
}

func TestSlotsCmd(t *testing.T) {
	t.Parallel()

	cmd := newSlotsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("slots: %v", err)
	}
	if !strings.Contains(out.String(), "slot-morning-09") {
		t.Errorf("slots output missing slot-morning-09:\n%s", out.String())
	}
}
