package main

import "github.com/Tiliavir/time-tracking-app/cmd"

func main() {
	cmd.Execute()
}
