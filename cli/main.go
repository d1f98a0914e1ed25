package main

import "github.com/ridewire/ridewire/cli/cmd"

func main() {
	cmd.Execute()
}
