// We structure the AFS command line tool as a single executable with
// subcommands, as is common for many cloud utilities. See cmd/ for the
// command tree.
package main

import "github.com/serverlessresearch/afs/cmd"

func main() {
	cmd.Execute()
}
