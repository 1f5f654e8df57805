package main

import "github.com/openqed/openqed/cmd"

func main() {
	cmd.Execute()
}
