package main

import "togglsync/cmd"

func main() {
	cmd.Execute()
}
