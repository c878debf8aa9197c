package main

import "imgtext-server-go/src/cmd"

func main() {
	cmd.Execute()
}
