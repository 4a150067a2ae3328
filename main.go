package main

import "github.com/clipfetch/clipfetch/cmd"

func main() {
	cmd.Execute()
}
