package main

import "github.com/theirongolddev/cchat/cmd"

func main() {
	cmd.Execute()
}
