package main

import "github.com/LeulTew/aura/cmd"

func main() {
	cmd.Execute()
}
