// cmd/tools/registry-check/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"dar-workers/pkg/registry"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validatePath := validateCmd.String("path", "configs/activity-registry.json", "Path to registry file")

	statusCmd := flag.NewFlagSet("status", flag.ExitOnError)
	statusPath := statusCmd.String("path", "configs/activity-registry.json", "Path to registry file")
	id := statusCmd.String("id", "", "Activity ID to update")
	value := statusCmd.String("value", "", "New implementation status (planned, implemented, verified)")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		reg, err := registry.LoadRegistry(*validatePath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		problems := reg.Validate()
		for _, p := range problems {
			fmt.Printf("  - %v\n", p)
		}
		if len(problems) > 0 {
			fmt.Printf("Registry validation failed with %d problem(s).\n", len(problems))
			os.Exit(1)
		}
		fmt.Printf("Registry validation passed. Found %d activities.\n", len(reg.Activities))

	case "status":
		statusCmd.Parse(os.Args[2:])
		if *id == "" || *value == "" {
			fmt.Println("Error: id and value are required for status.")
			statusCmd.Usage()
			os.Exit(1)
		}
		reg, err := registry.LoadRegistry(*statusPath)
		if err != nil {
			fmt.Printf("Error loading registry: %v\n", err)
			os.Exit(1)
		}
		if err := reg.SetStatus(*id, *value, time.Now()); err != nil {
			fmt.Printf("Error updating activity: %v\n", err)
			os.Exit(1)
		}
		if err := reg.Save(*statusPath); err != nil {
			fmt.Printf("Error saving registry: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated activity %s status to %s\n", *id, *value)

	default:
		help()
	}
}

func help() {
	fmt.Println(`
Usage: registry-check <command> [flags]

Commands:
  validate  Check required fields, duplicates and input schemas
  status    Set an activity's implementation status
  help      Show this help message

Examples:
  registry-check validate -path configs/activity-registry.json
  registry-check status -id dar.review.deadline -value verified`)
}
