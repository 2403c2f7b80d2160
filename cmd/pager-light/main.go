package main

import "github.com/oshokin/pager-light/cmd/pager-light/cmd"

func main() {
	cmd.Execute()
}
