package main

import (
	"context"
	"fmt"
	"os"

	"github.com/blocksmith-dev/blocksmith/internal/cli"
)

func main() {
	if err := cli.Root().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
