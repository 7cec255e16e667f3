// riptool is a CLI client for the ripd debug HTTP API.
package main

import "github.com/ripnet/ripd/cmd/riptool/commands"

func main() {
	commands.Execute()
}
