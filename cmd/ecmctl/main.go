package main

import (
	"os"

	"github.com/ecmcloud/ecm/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
