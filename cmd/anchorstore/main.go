package main

import "github.com/pandodao/anchor-store/cmd/anchorstore/cmd"

func main() {
	cmd.Execute()
}
