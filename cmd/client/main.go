package main

import (
	"tradekeeper/cmd/client/cmd"
)

func main() {
	cmd.Execute()
}
