package main

import "github.com/jmcleod/mathquiz/cmd/mathquiz/cmd"

func main() {
	cmd.Execute()
}
