package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/despacho-tools/despachosuite/internal/despachocli"
)

func main() {
	if err := despachocli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, despachocli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr)
			despachocli.PrintUsage(os.Stderr)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
