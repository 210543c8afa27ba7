// Command wpmigrate migrates reference data from a legacy WordPress-style
// store into a normalized relational schema.
package main

import (
	"os"

	"github.com/cinedata/wpmigrate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
