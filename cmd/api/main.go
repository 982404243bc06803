package main

import (
	"log"
)

func main() {

	server, cleanup, err := InitializeServer()
	if err != nil {
		log.Fatal(err)
		return
	}
	defer cleanup()

	if err = server.Run(server.Address); err != nil {
		log.Print(err.Error())
	}
}
