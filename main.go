package main

import (
	"github.com/fitaccessng/qring-backend/server"
)

func main() {
	s := server.NewServer()
	s.Start(s.Config.Server.Addr)
}
