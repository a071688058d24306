package main

import "github.com/drgolem/audiopipe/cmd"

func main() {
	cmd.Execute()
}
