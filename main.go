package main

import "github.com/darmiel/sessionbridge/cmd"

func main() {
	cmd.Execute()
}
