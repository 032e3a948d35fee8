package main

import "lostandfound/internal/app"

// @title           LostAndFound Recovery & Audit API
// @version         1.0
// @description     Account recovery, verification and authentication audit endpoints.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
