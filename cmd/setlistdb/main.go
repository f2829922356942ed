package main

import "github.com/marshallshelly/setlistdb/cmd/setlistdb/commands"

func main() {
	commands.Execute()
}
