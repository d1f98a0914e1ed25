package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the chat history for the booking",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		booking, _, err := bookingAndRole()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		limit, _ := cmd.Flags().GetInt("limit")
		cursor, _ := cmd.Flags().GetString("cursor")
		all, _ := cmd.Flags().GetBool("all")

		for {
			page, err := api.messages(booking, limit, cursor)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error loading messages:", err)
				return
			}
			for _, msg := range page.Messages {
				printMessage(msg)
			}
			cursor = page.NextCursor
			if !all || cursor == "" {
				if cursor != "" {
					fmt.Printf("more available, continue with --cursor %s\n", cursor)
				}
				return
			}
		}
	},
}

func printMessage(msg wireMessage) {
	stamp := msg.CreatedAt
	if t, err := time.Parse(time.RFC3339Nano, msg.CreatedAt); err == nil {
		stamp = t.Local().Format("15:04:05")
	}
	fmt.Printf("[%s] %s: %s\n", stamp, msg.SenderRole, msg.Body)
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 50, "Messages per page")
	historyCmd.Flags().String("cursor", "", "Resume from a previous page's cursor")
	historyCmd.Flags().Bool("all", false, "Follow cursors until the full history is printed")
}
