package main

import "github.com/greyhatharold/oracular/cmd"

func main() {
	cmd.Execute()
}
