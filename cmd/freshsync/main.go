package main

import "freshsync/cmd/freshsync/cmd"

func main() {
	cmd.Execute()
}
