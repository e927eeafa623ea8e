// Command shastractl is the operator CLI for the shastrarthi generation service.
//
// Usage:
//
//	./shastractl prompts list
//	./shastractl prompts render readerChat --var text_name="Bhagavad Gita"
//	./shastractl generate synthesis --query "What is dharma?" --output json
//	./shastractl pages find --mode simplify --source "tat tvam asi"
package main

import (
	"os"

	"github.com/runixer/shastrarthi/internal/app"
)

func main() {
	if err := run(app.SetupServices, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		// Cobra already printed the error
		os.Exit(1)
	}
}
