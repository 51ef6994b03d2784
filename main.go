package main

import (
	"os"

	"github.com/swan-ide/swanctl/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
