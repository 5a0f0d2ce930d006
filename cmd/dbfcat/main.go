package main

import "github.com/Ulysses-Xu/godbf/cmd/dbfcat/cmd"

func main() {
	cmd.Execute()
}
