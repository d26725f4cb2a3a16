package main

import "depswap/internal/cli"

func main() {
	cli.Execute()
}
