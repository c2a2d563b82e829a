package main

import "github.com/dbsmedya/gorewinder/cmd/gorewinder/cmd"

func main() {
	cmd.Execute()
}
