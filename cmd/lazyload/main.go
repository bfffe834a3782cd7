package main

import "github.com/withgalaxy/lazyload/pkg/cli"

func main() {
	cli.Execute()
}
