package main

import "github.com/oglimmer/mdalert/cmd/mdalert/cmd"

func main() {
	cmd.Execute()
}
