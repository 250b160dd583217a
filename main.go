package main

import (
	"os"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
