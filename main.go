// main is the entry point of the busfactor CLI.
package main

import (
	"github.com/huangsam/busfactor/cmd"
	"github.com/huangsam/busfactor/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogFatal("busfactor failed", err)
	}
}
