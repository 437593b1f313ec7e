package main

import (
	"os"
	"pricescout-backend/cmd/pricescout-cli/cmd"
)

func main() {
	cmd.BaseUrl = os.Getenv("PRICESCOUT_BASE_URL")
	cmd.Execute()
}
