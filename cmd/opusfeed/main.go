package main

import "github.com/Henry6262/opus-x-sub001/internal/cli"

func main() {
	cli.Execute()
}
