package main

import (
	"github.com/patric-chuzhbe/tinyapp/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		panic(err)
	}
	defer application.Close()

	err = application.Run()
	if err != nil {
		panic(err)
	}
}
