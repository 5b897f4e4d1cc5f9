// Command covidlag fits and evaluates lagged COVID-19 mortality models.
package main

import (
	"context"
	"os"

	"covidlag/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
