package main

import (
	"github.com/mxkodo/pubcast/cmd"
)

func main() {
	cmd.Execute()
}
