package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/aerolink-io/aerolink/cmd/alink-drone-agent/app"
)

func main() {
	app.NewApp().Run()
}
