package main

import (
	"log"

	"oauth-token-cache/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
