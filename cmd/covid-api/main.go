package main

import (
	"os"

	"go-covid-pipeline/internal/cli"
)

// covid-api serves the JSON API. Flags are those of "covid serve".
func main() {
	os.Exit(int(cli.RunArgs(append([]string{"serve"}, os.Args[1:]...))))
}
