package main

import (
	"os"

	"flowrun/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
