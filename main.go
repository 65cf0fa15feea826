package main

import "mallard/cmd"

func main() {
	cmd.Execute()
}
