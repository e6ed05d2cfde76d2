package main

import "github.com/deploymenttheory/go-nvmefs/cmd"

func main() {
	cmd.Execute()
}
