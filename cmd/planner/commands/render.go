package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/benvon/schedule-builder/internal/models"
)

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func printProjects(w io.Writer, b *models.Bundle) {
	if len(b.Projects) == 0 {
		fmt.Fprintln(w, "No projects. Add one with 'planner project add <name>'.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tID\tNAME\tCOLOR\tDONE")
	for i, p := range b.Projects {
		done := 0
		for _, st := range p.SubTasks {
			if st.Completed {
				done++
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\n", i, p.ID, p.Name, p.Color, done, len(p.SubTasks))
	}
	_ = tw.Flush()
}

func printProject(w io.Writer, p models.Project) {
	fmt.Fprintf(w, "%s (%s) %s\n", p.Name, p.ID, p.Color)
	for _, st := range p.SubTasks {
		fmt.Fprintf(w, "  %s %s  %s\n", checkbox(st.Completed), st.Text, st.ID)
	}
}

func printSchedule(w io.Writer, b *models.Bundle, all bool) {
	var section models.Section
	empty := true
	for _, slot := range models.TimeSlots() {
		tasks := b.Schedule[slot.ID]
		if len(tasks) == 0 && !all {
			continue
		}
		empty = false
		if slot.Section != section {
			section = slot.Section
			fmt.Fprintf(w, "%s\n", strings.ToUpper(string(section)))
		}
		fmt.Fprintf(w, "  %-8s %-16s (%d/%d)\n", slot.Label, slot.ID, len(tasks), models.MaxTasksPerSlot)
		for _, t := range tasks {
			fmt.Fprintf(w, "    - %s  %s\n", t.ProjectName, t.ID)
			for _, st := range t.OriginalProjectSubTasks {
				fmt.Fprintf(w, "        %s %s\n", checkbox(st.Completed), st.Text)
			}
		}
	}
	if empty {
		fmt.Fprintln(w, "Nothing scheduled. Use 'planner schedule add <project-id> <slot-id>'.")
	}
}
