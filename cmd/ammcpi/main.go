package main

import (
	"context"
	"os"

	"ammcpi/internal/cli"

	"github.com/yanun0323/logs"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		logs.Errorf("ammcpi, err: %+v", err)
		os.Exit(1)
	}
}
