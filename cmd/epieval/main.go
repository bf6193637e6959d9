package main

import (
	"context"

	"epieval/cmd/epieval/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
