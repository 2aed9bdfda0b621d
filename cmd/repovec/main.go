package main

import "github.com/custodia-labs/repovec/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}
