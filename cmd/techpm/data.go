package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vthunder/techpm/internal/activity"
	"github.com/vthunder/techpm/internal/tracker"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Write all data as a timestamped snapshot",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := pm.Export(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Exported %s (%d bytes)\n", info.Location, info.Size)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file|->",
	GroupID: "data",
	Short:   "Replace all data with a snapshot",
	Long: `Replace all projects, tasks and the motto with a snapshot read from a
file, stdin ("-") or an earlier export (--key). Nothing changes when the
snapshot is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")

		var (
			s   tracker.Store
			err error
		)
		switch {
		case key != "" && len(args) == 0:
			s, err = pm.ImportArtifact(cmd.Context(), key)
		case key == "" && len(args) == 1:
			s, err = importFile(args[0])
		default:
			return fmt.Errorf("give either a file or --key")
		}
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d projects, %d tasks\n", len(s.Projects), len(s.Tasks))
		return nil
	},
}

func importFile(path string) (tracker.Store, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return tracker.Store{}, err
		}
		defer f.Close()
		r = f
	}
	return pm.Import(path, r)
}

var journalCmd = &cobra.Command{
	Use:     "journal [n]",
	GroupID: "data",
	Short:   "Show the last n journal entries (default 20)",
	Long: `Show the last n journal entries (default 20), optionally narrowed by
type (mutation, export, import, reminder, timer, error), text or day.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pm.Journal == nil {
			return fmt.Errorf("journal is disabled")
		}
		n := 20
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid count %q", args[0])
			}
			n = v
		}
		typ, _ := cmd.Flags().GetString("type")
		text, _ := cmd.Flags().GetString("grep")
		today, _ := cmd.Flags().GetBool("today")

		q := activity.Query{Type: activity.Type(typ), Text: text, Limit: n}
		if today {
			q.Since = pm.Journal.StartOfDay()
		}
		entries, err := pm.Journal.Find(q)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Journal is empty.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-8s  %s\n", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Type, e.Summary)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().String("key", "", "Artifact key of an earlier export")
	journalCmd.Flags().String("type", "", "Only entries of this type")
	journalCmd.Flags().String("grep", "", "Only entries mentioning this text")
	journalCmd.Flags().Bool("today", false, "Only entries since midnight")
	rootCmd.AddCommand(exportCmd, importCmd, journalCmd)
}
