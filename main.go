package main

import "nse-screener/cli"

func main() {
	cli.Execute()
}
