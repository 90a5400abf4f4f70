package main

import "github.com/oshokin/compose-updater/cmd/compose-updater/cmd"

func main() {
	cmd.Execute()
}
