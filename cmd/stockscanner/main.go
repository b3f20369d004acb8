package main

import "github.com/evan-axel/stock-scanner/internal/cli"

func main() {
	cli.Execute()
}
