package syncer

import (
	"context"

	"github.com/benvon/schedule-builder/internal/models"
	"github.com/benvon/schedule-builder/internal/schedule"
)

// AddProject creates a project and returns a copy of it
func (c *Controller) AddProject(ctx context.Context, name string) (models.Project, error) {
	var out models.Project
	err := c.commit(ctx, func(b *models.Bundle) error {
		p, err := schedule.AddProject(b, name, c.newID)
		if err != nil {
			return err
		}
		out = *p
		out.SubTasks = append([]models.SubTask(nil), p.SubTasks...)
		return nil
	})
	return out, err
}

// RenameProject renames a project and its scheduled copies
func (c *Controller) RenameProject(ctx context.Context, projectID, name string) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.RenameProject(b, projectID, name)
	})
}

// RemoveProject deletes a project and every task scheduled from it
func (c *Controller) RemoveProject(ctx context.Context, projectID string) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.RemoveProject(b, projectID)
	})
}

// ReorderProjects moves a project within the list
func (c *Controller) ReorderProjects(ctx context.Context, from, to int) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.ReorderProjects(b, from, to)
	})
}

// AddSubTask appends a sub-task to a project
func (c *Controller) AddSubTask(ctx context.Context, projectID, text string) (models.SubTask, error) {
	var out models.SubTask
	err := c.commit(ctx, func(b *models.Bundle) error {
		st, err := schedule.AddSubTask(b, projectID, text, c.newID)
		if err != nil {
			return err
		}
		out = *st
		return nil
	})
	return out, err
}

// EditSubTask changes a sub-task's text everywhere it appears
func (c *Controller) EditSubTask(ctx context.Context, projectID, subTaskID, text string) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.EditSubTask(b, projectID, subTaskID, text)
	})
}

// ToggleSubTask flips a sub-task's completion everywhere it appears
func (c *Controller) ToggleSubTask(ctx context.Context, projectID, subTaskID string) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.ToggleSubTask(b, projectID, subTaskID)
	})
}

// RemoveSubTask deletes a sub-task from a project
func (c *Controller) RemoveSubTask(ctx context.Context, projectID, subTaskID string) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.RemoveSubTask(b, projectID, subTaskID)
	})
}

// ScheduleProject places a snapshot of a project into a time slot
func (c *Controller) ScheduleProject(ctx context.Context, projectID, slotID string) (models.ScheduledTask, error) {
	var out models.ScheduledTask
	err := c.commit(ctx, func(b *models.Bundle) error {
		t, err := schedule.ScheduleProject(b, projectID, slotID, c.newID)
		if err != nil {
			return err
		}
		out = *t
		out.OriginalProjectSubTasks = append([]models.SubTask(nil), t.OriginalProjectSubTasks...)
		return nil
	})
	return out, err
}

// MoveTask moves a scheduled task to another slot
func (c *Controller) MoveTask(ctx context.Context, taskID, toSlotID string) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.MoveTask(b, taskID, toSlotID)
	})
}

// DeleteTask removes a scheduled task
func (c *Controller) DeleteTask(ctx context.Context, taskID string) error {
	return c.commit(ctx, func(b *models.Bundle) error {
		return schedule.DeleteTask(b, taskID)
	})
}
