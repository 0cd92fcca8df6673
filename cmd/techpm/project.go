package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vthunder/techpm/internal/hierarchy"
	"github.com/vthunder/techpm/internal/tracker"
)

// errConfirm is returned when a destructive command needs --yes
var errConfirm = errors.New("confirmation required")

var projectsCmd = &cobra.Command{
	Use:     "projects",
	GroupID: "tracker",
	Short:   "Show the project tree with progress",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes := hierarchy.Build(pm.Tracker.Snapshot()).Tree()
		if len(nodes) == 0 {
			fmt.Println("No projects yet. Create one with: techpm project add <name>")
			return nil
		}
		for _, n := range nodes {
			printNode(n, 0)
		}
		return nil
	},
}

func printNode(n hierarchy.Node, depth int) {
	name := strings.Repeat("  ", depth) + n.Project.Name
	fmt.Printf("%-36s %-10s %3d%%  %2d tasks  %s\n", name, n.Project.Stage, n.Progress, n.Tasks, n.Project.ID)
	for _, c := range n.Children {
		printNode(c, depth+1)
	}
}

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "tracker",
	Short:   "Create, edit and delete projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a project (or a sub-project with --parent)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		parent, _ := cmd.Flags().GetString("parent")

		st, ok := tracker.ParseStage(stage)
		if !ok {
			st = tracker.Stage(stage)
		}
		id, err := pm.Tracker.CreateProject(strings.Join(args, " "), st, parent)
		if err != nil {
			return err
		}
		fmt.Printf("Created project %s\n", id)
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a project with its sub-projects and their tasks",
	Long: `Delete a project with its sub-projects and their tasks.

When anything beyond the project itself would be removed, the plan is
printed and nothing happens unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		id := args[0]

		plan, err := pm.Tracker.PlanDelete(id)
		if err != nil {
			return err
		}
		if plan.NeedsConfirmation && !yes {
			fmt.Printf("Deleting %s also removes %d sub-project(s) and %d task(s).\n",
				id, len(plan.ProjectIDs)-1, len(plan.TaskIDs))
			fmt.Println("Re-run with --yes to confirm.")
			return errConfirm
		}
		if err := pm.Tracker.DeleteProject(id); err != nil {
			return err
		}
		fmt.Printf("Deleted %d project(s) and %d task(s)\n", len(plan.ProjectIDs), len(plan.TaskIDs))
		return nil
	},
}

var projectSetCmd = &cobra.Command{
	Use:   "set <id> <field> [value]",
	Short: "Set a project field",
	Long: `Set one project field.

Fields: name, stage, startAt, endAt (YYYY-MM-DD), deliverables, parentId.
An omitted value clears optional fields.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return pm.Tracker.UpdateProjectField(args[0], args[1], strings.Join(args[2:], " "))
	},
}

var progressCmd = &cobra.Command{
	Use:     "progress <project-id>",
	GroupID: "tracker",
	Short:   "Show the completion percentage of a project",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx := hierarchy.Build(pm.Tracker.Snapshot())
		p, ok := idx.Project(args[0])
		if !ok {
			return tracker.NotFoundf("progress", "project %s", args[0])
		}
		fmt.Printf("%s: %d%%\n", p.Name, idx.Progress(p.ID))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "tracker",
	Short:   "Show the motto and overall counters",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := pm.Tracker.Snapshot()
		c := hierarchy.Build(s).Stats()
		fmt.Println(s.Motto)
		fmt.Println()
		fmt.Printf("Tasks:     %d total, %d done\n", c.TotalTasks, c.DoneTasks)
		fmt.Printf("Running:   %d projects\n", c.RunningProjects)
		fmt.Printf("Progress:  %d%%\n", c.OverallPercent)
		return nil
	},
}

var mottoCmd = &cobra.Command{
	Use:     "motto [text]",
	GroupID: "tracker",
	Short:   "Show or set the motto",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Println(pm.Tracker.Snapshot().Motto)
			return nil
		}
		return pm.Tracker.SetMotto(strings.Join(args, " "))
	},
}

func init() {
	projectAddCmd.Flags().String("stage", string(tracker.StagePlanning), "Planning, Executing, Closing, Paused or Archived")
	projectAddCmd.Flags().String("parent", "", "Parent project ID (creates a sub-project)")
	projectRmCmd.Flags().Bool("yes", false, "Confirm deleting sub-projects and tasks")

	projectCmd.AddCommand(projectAddCmd, projectRmCmd, projectSetCmd)
	rootCmd.AddCommand(projectsCmd, projectCmd, progressCmd, statsCmd, mottoCmd)
}
