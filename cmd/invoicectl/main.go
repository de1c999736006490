package main

import (
	"os"

	"github.com/invoiceapp/invoiceapp/cmd/invoicectl/cli"
)

func main() {
	os.Exit(cli.Execute())
}
