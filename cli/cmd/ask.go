package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ridewire/ridewire/server/intent"
)

var askCmd = &cobra.Command{
	Use:   "ask [text...]",
	Short: "Interpret free text and run the matching command",
	Long: `Sends the text to the intent-classification service and, depending on
the detected intent, either sends it as a chat message, starts a call, or
prints the chat history. Requires --intent-url or intent_url in the config.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		booking, role, err := bookingAndRole()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		baseURL := viper.GetString(intentURLKey)
		if baseURL == "" {
			fmt.Fprintln(os.Stderr, "Error: intent service is not configured, use --intent-url")
			return
		}

		input := strings.Join(args, " ")
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		cl := &intent.Client{BaseURL: baseURL}
		detected, err := cl.Classify(ctx, booking, role, input)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error classifying input:", err)
			return
		}
		fmt.Printf("intent: %s (confidence %.2f)\n", detected.Action, detected.Confidence)

		switch detected.Action {
		case intent.ActionSendMessage:
			body := detected.Message
			if body == "" {
				body = input
			}
			msg, err := api.sendMessage(booking, role, body)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error sending message:", err)
				return
			}
			fmt.Printf("sent #%d %s\n", msg.Seq, msg.ID)
		case intent.ActionMakeCall:
			status, err := api.callAction(booking, role, "initiate", "", 0)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error starting call:", err)
				return
			}
			fmt.Printf("call state: %s\n", status.State)
		case intent.ActionGetMessages:
			page, err := api.messages(booking, 50, "")
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error loading messages:", err)
				return
			}
			for _, msg := range page.Messages {
				printMessage(msg)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
