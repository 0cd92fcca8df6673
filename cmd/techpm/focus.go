package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vthunder/techpm/internal/focus"
)

var timerCmd = &cobra.Command{
	Use:     "timer [25|50|90]",
	GroupID: "focus",
	Short:   "Run a focus countdown (Ctrl+C pauses and exits)",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timer := pm.NewTimer(focus.SystemClock{})
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid preset %q", args[0])
			}
			if err := timer.SelectPreset(focus.Preset(n)); err != nil {
				return err
			}
		}

		done := make(chan struct{})
		var once sync.Once
		timer.OnComplete(func() { once.Do(func() { close(done) }) })
		timer.OnChange(func(st focus.State) {
			fmt.Printf("\r%s ", formatClock(st.Remaining))
		})
		if err := timer.Start(); err != nil {
			return err
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-done:
			fmt.Println()
			fmt.Println(focus.CompleteMessage)
		case <-sigChan:
			timer.Pause()
			fmt.Printf("\nPaused with %s remaining\n", formatClock(timer.State().Remaining))
		}
		return nil
	},
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

var remindCmd = &cobra.Command{
	Use:     "remind <task-id>",
	GroupID: "focus",
	Short:   "Wait for a task's due reminder",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reminders := pm.NewReminders(focus.SystemClock{})
		defer reminders.Stop()

		rem, err := pm.ScheduleReminder(cmd.Context(), reminders, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Reminder for %q at %s, waiting (Ctrl+C to cancel)\n", rem.Title, formatDue(&rem.At))

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-rem.Fired():
			fmt.Println(focus.DueMessage(rem.Title))
		case <-sigChan:
			fmt.Println("Reminder cancelled")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(timerCmd, remindCmd)
}
