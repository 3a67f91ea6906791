package main

import "github.com/KaramelBytes/edachat-cli/cmd"

func main() {
	cmd.Execute()
}
