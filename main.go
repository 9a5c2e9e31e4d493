package main

import "github.com/fakeyudi/oculist/cmd"

func main() {
	cmd.Execute()
}
