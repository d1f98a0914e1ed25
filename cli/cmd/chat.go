package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open a live chat session in a tview-based interface",
	Long: `Connects to the booking over WebSocket and shows messages and call
state updates as they arrive. Type to chat; use /call, /video, /accept,
/reject, /cancel and /end to drive calls from the input line.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		booking, role, err := bookingAndRole()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		if err := runChatUI(booking, role); err != nil {
			fmt.Fprintln(os.Stderr, "Chat UI error:", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

type pushEvent struct {
	Type      string       `json:"type"`
	Message   *wireMessage `json:"message"`
	CallState *struct {
		State       string   `json:"state"`
		Role        string   `json:"role"`
		Message     string   `json:"message"`
		ShowButtons []string `json:"show_buttons"`
	} `json:"call_state"`
	Error string `json:"error"`
}

func runChatUI(booking, role string) error {
	app := tview.NewApplication()

	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetWordWrap(true).
		SetScrollable(true).
		ScrollToEnd()

	inputField := tview.NewInputField().
		SetLabel(role + " ❯❯ ").
		SetFieldWidth(0).
		SetAcceptanceFunc(tview.InputFieldMaxLength(256))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(textView, 0, 1, false).
		AddItem(inputField, 1, 0, true)

	app.SetRoot(flex, true).SetFocus(inputField)

	// Load past messages first.
	page, err := api.messages(booking, 50, "")
	if err != nil {
		fmt.Fprintf(textView, "[red]Error loading history: %v\n", err)
	} else {
		for _, msg := range page.Messages {
			renderMessage(textView, msg)
		}
	}
	textView.ScrollToEnd()

	sock, err := dialSession(booking, role)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer sock.Close()

	fmt.Fprintf(textView, "[green]Connected to booking %s as %s. (Ctrl+C to exit)\n", booking, role)

	go func() {
		for {
			var ev pushEvent
			if err := sock.ReadJSON(&ev); err != nil {
				app.QueueUpdateDraw(func() {
					fmt.Fprintln(textView, "[red]Connection closed by server.")
				})
				return
			}
			app.QueueUpdateDraw(func() {
				renderEvent(textView, ev, role)
				textView.ScrollToEnd()
			})
		}
	}()

	inputField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(inputField.GetText())
		if text == "" {
			return
		}
		frame := buildFrame(text)
		if err := sock.WriteJSON(frame); err != nil {
			app.QueueUpdateDraw(func() {
				fmt.Fprintf(textView, "[red]Failed to send: %v\n", err)
			})
		}
		inputField.SetText("")
	})

	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			app.Stop()
			return nil
		}
		return event
	})

	return app.Run()
}

// buildFrame maps input-line slash commands onto call actions; anything else
// is a chat message.
func buildFrame(text string) map[string]any {
	if text == "/video" {
		return map[string]any{"type": "call_action", "action": "initiate", "call_type": "video"}
	}
	actions := map[string]string{
		"/call":   "initiate",
		"/accept": "accept",
		"/reject": "reject",
		"/cancel": "cancel",
		"/end":    "end",
	}
	if action, ok := actions[text]; ok {
		return map[string]any{"type": "call_action", "action": action}
	}
	return map[string]any{"type": "send", "body": text}
}

func dialSession(booking, role string) (*websocket.Conn, error) {
	base, err := url.Parse(viper.GetString(serverURLKey))
	if err != nil {
		return nil, err
	}
	scheme := "ws"
	if base.Scheme == "https" {
		scheme = "wss"
	}
	q := url.Values{}
	q.Set("booking_code", booking)
	q.Set("role", role)
	wsURL := url.URL{Scheme: scheme, Host: base.Host, Path: "/v1/ws", RawQuery: q.Encode()}

	sock, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	return sock, err
}

func renderMessage(textView *tview.TextView, msg wireMessage) {
	stamp := msg.CreatedAt
	if t, err := time.Parse(time.RFC3339Nano, msg.CreatedAt); err == nil {
		stamp = t.Local().Format("15:04:05")
	}
	color := "blue"
	if msg.SenderRole == "system" {
		color = "yellow"
	}
	fmt.Fprintf(textView, "[white][%s] [%s]%s[white]: %s\n", stamp, color, msg.SenderRole, msg.Body)
}

func renderEvent(textView *tview.TextView, ev pushEvent, role string) {
	switch {
	case ev.Type == "message" && ev.Message != nil:
		renderMessage(textView, *ev.Message)
	case ev.Type == "call_state_update" && ev.CallState != nil:
		if ev.CallState.Role != role {
			return
		}
		line := fmt.Sprintf("[yellow]** %s", ev.CallState.Message)
		if len(ev.CallState.ShowButtons) > 0 {
			line += fmt.Sprintf(" (available: /%s)", strings.Join(ev.CallState.ShowButtons, ", /"))
		}
		fmt.Fprintln(textView, line)
	case ev.Type == "error":
		fmt.Fprintf(textView, "[red]server error: %s\n", ev.Error)
	}
}
