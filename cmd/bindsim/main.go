// Command bindsim builds a scene of entities and subcontrollers from a YAML
// file, replays its activation script and prints the resulting bind states.
package main

import "github.com/tebeka/atexit"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
