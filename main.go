package main

import "github.com/kiesman99/globestitch/cmd"

func main() {
	cmd.Execute()
}
