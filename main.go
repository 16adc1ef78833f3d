package main

import "github.com/SatyaChamana/Codelens/cmd"

func main() {
	cmd.Execute()
}
