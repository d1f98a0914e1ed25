package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send [message...]",
	Short: "Send a chat message to the other party",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		booking, role, err := bookingAndRole()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		msg, err := api.sendMessage(booking, role, strings.Join(args, " "))
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error sending message:", err)
			return
		}
		fmt.Printf("sent #%d %s\n", msg.Seq, msg.ID)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
