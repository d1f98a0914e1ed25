package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:       "call [initiate|ring|accept|reject|cancel|end]",
	Short:     "Drive the voice-call state for the booking",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"initiate", "ring", "accept", "reject", "cancel", "end"},
	Run: func(cmd *cobra.Command, args []string) {
		booking, role, err := bookingAndRole()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		duration, _ := cmd.Flags().GetInt("duration")
		callType, _ := cmd.Flags().GetString("type")
		status, err := api.callAction(booking, role, args[0], callType, duration)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		fmt.Printf("call state: %s\n", status.State)
		if buttons := status.Buttons[role]; len(buttons) > 0 {
			fmt.Printf("your actions: %v\n", buttons)
		}
	},
}

var callHistoryCmd = &cobra.Command{
	Use:   "calls",
	Short: "Show the call history for the booking",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		booking, _, err := bookingAndRole()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		history, err := api.callHistory(booking)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading call history:", err)
			return
		}
		for _, rec := range history.Calls {
			stamp := rec.StartedAt
			if t, err := time.Parse(time.RFC3339Nano, rec.StartedAt); err == nil {
				stamp = t.Local().Format("2006-01-02 15:04:05")
			}
			line := fmt.Sprintf("[%s] %s %s -> %s: %s", stamp, rec.CallType, rec.CallerRole, rec.CalleeRole, rec.State)
			if rec.State == "ended" {
				line += fmt.Sprintf(" (%ds)", rec.DurationSeconds)
			}
			fmt.Println(line)
		}
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(callHistoryCmd)
	callCmd.Flags().Int("duration", 0, "Client-side measured duration in seconds, sent with end for diagnostics")
	callCmd.Flags().String("type", "voice", "Call type for initiate: voice or video")
}
