package main

import "github.com/jrsteele09/grantpilot-workspace/cmd/workspace/cmd"

func main() {
	cmd.Execute()
}
