package main

import "github.com/maestro-org/maestro/cmd/maestro/internal"

func main() {
	internal.Execute()
}
