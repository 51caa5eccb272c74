package main

import (
	"os"

	"github.com/joacominatel/dataprism-demo/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
