package main

import "github.com/bryanchriswhite/pixview/cmd/pixview/commands"

func main() {
	commands.Execute()
}
