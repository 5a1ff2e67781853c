package main

import "copilot/internal/cli"

func main() {
	cli.Execute()
}
