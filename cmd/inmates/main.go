// Package main is the entry point for the inmates lookup CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"inmates/cmd/inmates/app"
)

func main() {
	_ = godotenv.Load()
	os.Exit(app.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
