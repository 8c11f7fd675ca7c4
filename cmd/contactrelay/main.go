package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/contactrelay/app"
	"github.com/dalemusser/contactrelay/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		fmt.Fprintln(os.Stderr, "contactrelay:", err)
		os.Exit(1)
	}
}
