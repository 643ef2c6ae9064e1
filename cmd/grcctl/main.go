package main

import "github.com/jrsteele09/go-grc-client/cmd/grcctl/cmd"

func main() {
	cmd.Execute()
}
