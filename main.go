package main

import (
	"github.com/joho/godotenv"

	"ghtfetch/cmd"
)

func main() {
	// Optional .env for GHTFETCH_* variables; a missing file is fine.
	_ = godotenv.Load()

	cmd.Execute()
}
