// Package main is the entry point for the metricgate binary.
package main

import "os"

func main() {
	os.Exit(Execute())
}
