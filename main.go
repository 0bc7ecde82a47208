package main

import "github.com/lsst-ts/ts-ess-epm/cmd"

func main() {
	cmd.Execute()
}
