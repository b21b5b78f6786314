package main

import "github.com/jrsteele09/go-auth-client/cmd/notesauth/cmd"

func main() {
	cmd.Execute()
}
