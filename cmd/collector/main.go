package main

import "github.com/mjones3/exception-collector/internal/cli"

func main() {
	cli.Execute()
}
