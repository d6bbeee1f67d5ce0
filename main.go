package main

import "github.com/tonyatml/logic-automator-sub001/pkg/cli"

func main() {
	cli.Execute()
}
