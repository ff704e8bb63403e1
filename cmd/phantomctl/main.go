package main

import (
	"os"

	"github.com/phantomos/phantom/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
