package main

import "github.com/OpenVisualCloud/VDI-Toolkit/cmd"

func main() {
	cmd.Execute()
}
