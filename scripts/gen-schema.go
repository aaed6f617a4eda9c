//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/runlens/pkg/events"
	"github.com/ormasoftchile/runlens/pkg/registry"
)

func main() {
	regData, err := registry.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/pipeline-v1.json", regData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/pipeline-v1.json")

	evtData, err := events.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating event schema: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/events-v1.json", evtData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/events-v1.json")
}
