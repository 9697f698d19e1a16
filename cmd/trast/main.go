package main

import (
	"os"

	"trast/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
