package main

import "github.com/stevehiehn/spren/cmd"

func main() {
	cmd.Execute()
}
