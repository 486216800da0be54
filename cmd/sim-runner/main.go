// Package main - sim-runner
// Executable to run the headless economy simulation.
package main

import (
	"fmt"
	"os"

	"github.com/ddanshin/MagnatTap/server/test"
)

func main() {
	fmt.Println("MAGNAT TAP - ECONOMY SIMULATION")
	fmt.Println("================================")

	sim := test.NewEconomySim()
	sim.Run()

	results := sim.Results()
	passed := 0
	failed := 0

	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}

	fmt.Println("\n================================")
	fmt.Println("SIMULATION SUMMARY")
	fmt.Println("================================")
	fmt.Printf("   Passed: %d\n", passed)
	fmt.Printf("   Failed: %d\n", failed)

	for _, r := range results {
		if !r.Passed {
			fmt.Printf("   FAIL %s: %s\n", r.ScenarioName, r.Reason)
		}
	}

	if failed > 0 {
		fmt.Println("\nEconomy needs recalibration before deploy")
		os.Exit(1)
	}
	fmt.Println("\nEconomy invariants hold")
}
