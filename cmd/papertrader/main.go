package main

import "github.com/rustyeddy/papertrader/internal/cli"

func main() {
	cli.Execute()
}
