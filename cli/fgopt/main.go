// Package main is the fgopt command itself.
package main

import (
	"log"
	"os"

	"go.viam.com/factorgraph/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err.Error())
	}
}
