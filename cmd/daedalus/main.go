package main

import (
	"context"
	"fmt"
	"os"
)

// Version is set during build using ldflags
var Version = "dev"

func main() {
	a := newApp(os.Stdin, os.Stdout)
	if err := a.command().Run(context.Background(), os.Args); err != nil {
		a.report(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
