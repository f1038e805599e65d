package main

import "github.com/sitebudget/sitebudget/cmd/sitebudget/cli"

func main() {
	cli.Execute()
}
