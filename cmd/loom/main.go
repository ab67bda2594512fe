// Loom simulates input-queued routers cycle by cycle.
package main

import "github.com/sarchlab/loom/cmd/loom/cmd"

func main() {
	cmd.Execute()
}
