// Package main provides the entry point for the shrimp URL shortener.
//
//	@title			shrimp & tide-charts API
//	@version		1.0.0
//	@description	Minimal URL shortener with click analytics, plus the tide-charts activity stats backend.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:3000
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Admin JWT. Format: "Bearer {token}". X-Admin-Token and ?token= are also accepted.
package main

import (
	"fmt"
	"os"

	_ "shrimp/docs" // Import swagger docs
	"shrimp/internal/command"
)

var Version = "dev"

func main() {
	if err := command.NewShrimpCmd(Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
