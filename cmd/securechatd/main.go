package main

import (
	"log"

	cmd "github.com/xsukax/securechat/cmd/securechatd/commands"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Fatalf("Panic: %+v", r)
		}
	}()

	cmd.Execute()
}
