package main

import (
	"os"

	"thread.fit/stitch/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
