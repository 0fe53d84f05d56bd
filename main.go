// ABOUTME: Entry point for the sendspin-cast sender CLI
// ABOUTME: Hands control to the cobra command tree
package main

import "github.com/Sendspin/sendspin-cast/internal/cli"

func main() {
	cli.Execute()
}
