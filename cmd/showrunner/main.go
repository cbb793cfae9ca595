package main

import (
	"showrunner/cmd/handlers"
	"showrunner/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
