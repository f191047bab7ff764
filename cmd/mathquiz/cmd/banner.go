package cmd

import (
	"fmt"
	"io"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

const banner = `
              _   _                 _
  _ __ ___   __ _| |_| |__   __ _ _   _(_)____
 | '_ ` + "`" + ` _ \ / _` + "`" + ` | __| '_ \ / _` + "`" + ` | | | | |_  /
 | | | | | | (_| | |_| | | | (_| | |_| | |/ /
 |_| |_| |_|\__,_|\__|_| |_|\__, |\__,_|_/___|
                                |_|
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[34m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Arithmetic Quiz Server - Version %s\x1b[0m\n\n", Version)
}
