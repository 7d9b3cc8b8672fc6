package main

import (
	cmd "github.com/kerbaras/comicdl/cmd/comicdl"
)

func main() {
	cmd.Execute()
}
