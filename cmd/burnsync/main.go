package main

import (
	"github.com/burnsync/burnsync/cmd"
)

func main() {
	cmd.Execute()
}
