package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vthunder/techpm/internal/hierarchy"
	"github.com/vthunder/techpm/internal/logging"
	"github.com/vthunder/techpm/internal/query"
	"github.com/vthunder/techpm/internal/tracker"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	GroupID: "tracker",
	Short:   "List tasks, unfinished first, then by due date",
	Long: `List tasks, unfinished first, then by due date (no due date last).
Overdue tasks are marked with "!" after the due date.

A root project in --project includes the tasks of its sub-projects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		status, _ := cmd.Flags().GetString("status")
		tag, _ := cmd.Flags().GetString("tag")
		text, _ := cmd.Flags().GetString("q")

		s := pm.Tracker.Snapshot()
		idx := hierarchy.Build(s)
		tasks, err := query.TasksIndexed(idx, s, query.Filter{
			ProjectID: project,
			Status:    status,
			Tag:       tag,
			Text:      text,
		})
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No matching tasks.")
			return nil
		}

		now := time.Now()
		for _, t := range tasks {
			pname := ""
			if p, ok := idx.Project(t.ProjectID); ok {
				pname = p.Name
			}
			fmt.Printf("%s %-32s %-18s %-20s %-24s %s\n",
				statusMark(t.Status), logging.Truncate(t.Title, 32), dueCell(t, now),
				logging.Truncate(pname, 20), strings.Join(t.Tags, ","), t.ID)
		}
		return nil
	},
}

func statusMark(s tracker.Status) string {
	switch s {
	case tracker.StatusDone:
		return "[x]"
	case tracker.StatusInProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "-"
	}
	return due.Local().Format("2006-01-02 15:04")
}

// dueCell is the due column of the task list; overdue tasks get a trailing "!"
func dueCell(t tracker.Task, now time.Time) string {
	if t.Overdue(now) {
		return formatDue(t.DueAt) + " !"
	}
	return formatDue(t.DueAt)
}

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "tracker",
	Short:   "Create, update and delete tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a Todo task (default project: the first root project)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		id, err := pm.Tracker.CreateTask(strings.Join(args, " "), project)
		if err != nil {
			return err
		}
		fmt.Printf("Created task %s\n", id)
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task Done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pm.Tracker.MarkDone(args[0])
	},
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Flip a task between Done and Todo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pm.Tracker.ToggleTaskDone(args[0]); err != nil {
			return err
		}
		if t, ok := pm.Tracker.Snapshot().FindTask(args[0]); ok {
			fmt.Printf("%s is now %s\n", t.Title, t.Status)
		}
		return nil
	},
}

var taskStatusCmd = &cobra.Command{
	Use:   "status <id> <Todo|InProgress|Done>",
	Short: "Set a task's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, ok := tracker.ParseStatus(args[1])
		if !ok {
			st = tracker.Status(args[1])
		}
		return pm.Tracker.SetTaskStatus(args[0], st)
	},
}

var taskSetCmd = &cobra.Command{
	Use:   "set <id> <field> [value]",
	Short: "Set a task field",
	Long: `Set one task field.

Fields: title, status, dueAt (e.g. 2025-03-01T18:00), tags (comma separated),
projectId. An omitted dueAt value clears the due date.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pm.Tracker.UpdateTaskField(args[0], args[1], strings.Join(args[2:], " "))
	},
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pm.Tracker.DeleteTask(args[0])
	},
}

func init() {
	tasksCmd.Flags().String("project", "", "Project ID (a root includes its sub-projects)")
	tasksCmd.Flags().String("status", query.StatusAll, "all, Todo, InProgress or Done")
	tasksCmd.Flags().String("tag", "", "Exact tag")
	tasksCmd.Flags().String("q", "", "Title substring (case-insensitive)")
	taskAddCmd.Flags().String("project", "", "Project ID")

	taskCmd.AddCommand(taskAddCmd, taskDoneCmd, taskToggleCmd, taskStatusCmd, taskSetCmd, taskRmCmd)
	rootCmd.AddCommand(tasksCmd, taskCmd)
}
