package main

// @title Teacher Training API
// @version 1.0.0
// @description Issue reporting and training assignment service for teachers and school administrators.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	execute()
}
