package main

import (
	"github.com/resonatehq/resmon/cmd"
)

func main() {
	cmd.Execute()
}
