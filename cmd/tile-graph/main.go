package main

import "github.com/sslab-gatech/tile-graph/cmd/tile-graph/cmd"

func main() {
	cmd.Execute()
}
