// Package appconfig loads process-wide environment configuration ahead of
// registry.LoadEnvVars, mirroring the teacher's main.go init() godotenv call.
package appconfig

import (
	"log"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file if present, otherwise logs that none was found and
// falls back to the ambient environment; matches the teacher's init()-time
// godotenv.Load() call.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	} else {
		log.Println("loaded .env file")
	}
}
