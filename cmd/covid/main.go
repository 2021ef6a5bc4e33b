package main

import (
	"os"

	"go-covid-pipeline/internal/cli"
)

func main() {
	os.Exit(int(cli.Run()))
}
