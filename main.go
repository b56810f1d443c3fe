package main

import (
	"github.com/seclytics/sirsync/internal/cmd"
)

func main() {
	cmd.Execute()
}
