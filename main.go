package main

import (
	"os"

	"github.com/scan-io-git/mettalint/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
