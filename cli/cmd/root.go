package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	api     *apiClient
)

const (
	serverURLKey   = "server_url"
	bookingCodeKey = "booking_code"
	roleKey        = "role"
	intentURLKey   = "intent_url"
)

var rootCmd = &cobra.Command{
	Use:   "ridewire",
	Short: "Driver-passenger chat and call client",
	Long: `Client for the ridewire session server. Each command acts on one
booking, identified by its booking code, as either the driver or the
passenger role.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		api = &apiClient{baseURL: viper.GetString(serverURLKey)}
		return nil
	},
}

// Execute runs a single command when arguments are given, otherwise drops
// into an interactive prompt.
func Execute() {
	if len(os.Args) > 1 {
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	fmt.Println("entering interactive mode, type 'exit' to quit")
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("❯❯❯ ")
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		args, err := shellwords.Parse(line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "parse error:", err)
			continue
		}
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ridewire.yaml)")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the ridewire server")
	rootCmd.PersistentFlags().String("booking", "", "Booking code scoping all commands")
	rootCmd.PersistentFlags().String("role", "", "Your role: driver or passenger")
	rootCmd.PersistentFlags().String("intent-url", "", "Base URL of the intent-classification service (for 'ask')")

	viper.BindPFlag(serverURLKey, rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag(bookingCodeKey, rootCmd.PersistentFlags().Lookup("booking"))
	viper.BindPFlag(roleKey, rootCmd.PersistentFlags().Lookup("role"))
	viper.BindPFlag(intentURLKey, rootCmd.PersistentFlags().Lookup("intent-url"))
	viper.SetDefault(serverURLKey, "http://localhost:8080")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ridewire")
	}

	viper.SetEnvPrefix("ridewire")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

// bookingAndRole resolves the two values every session command needs.
func bookingAndRole() (string, string, error) {
	booking := viper.GetString(bookingCodeKey)
	if booking == "" {
		return "", "", fmt.Errorf("booking code is not set, use --booking or the config file")
	}
	role := viper.GetString(roleKey)
	if role != "driver" && role != "passenger" {
		return "", "", fmt.Errorf("role must be driver or passenger, use --role or the config file")
	}
	return booking, role, nil
}
