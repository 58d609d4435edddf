package main

import "github.com/rudransh-shrivastava/rtracker/internal/cmd"

func main() {
	cmd.Execute()
}
