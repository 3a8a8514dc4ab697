package main

import "github.com/qobs-build/qmakestep/cmd"

func main() {
	cmd.Execute()
}
