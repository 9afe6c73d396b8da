/*
Copyright © 2025 Oleg Shokin

This file is the entry point for the media-grabber gateway.
It initializes and executes the root command defined in the cmd package.
*/
package main

import "github.com/oshokin/media-grabber/cmd"

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
