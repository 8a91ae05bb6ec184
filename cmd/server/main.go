// Package main provides the entry point for the Snowflake query gateway.
package main

func main() {
	Execute()
}
