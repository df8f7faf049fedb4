package main

import (
	"github.com/neupims-sim/neupims-sim/cmd"
)

func main() {
	cmd.Execute()
}
