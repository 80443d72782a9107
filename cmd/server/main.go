// Package main starts the wren link shortener.
//
//	@title			Wren Link Shortener API
//	@version		1.0
//	@description	Short links with analytics, expiration and cache-aside resolution
//	@host			localhost:8080
//	@BasePath		/
//	@schemes		http https
package main

import (
	"go.uber.org/fx"

	_ "github.com/ndelia/wren/docs"
	wrenFX "github.com/ndelia/wren/internal/fx"
)

func main() {
	fx.New(wrenFX.HTTPServerModules).Run()
}
