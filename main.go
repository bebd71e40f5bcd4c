package main

import "github.com/GiorgioBrux/raimu-sub001/cmd"

func main() {
	cmd.Execute()
}
