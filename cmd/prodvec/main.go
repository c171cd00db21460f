package main

import "prodvec/internal/cli"

func main() {
	cli.Execute()
}
