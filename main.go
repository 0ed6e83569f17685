package main

import "github.com/nextlevelbuilder/clara/cmd"

func main() {
	cmd.Execute()
}
