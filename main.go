package main

import "github.com/samsaffron/md-tools/cmd"

func main() {
	cmd.Execute()
}
