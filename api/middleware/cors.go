package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

var localCORSOrigins = []string{
	"http://localhost:3000",
}

// CORS returns middleware that allows the storefront site to call the public API.
func CORS(siteURL string) func(http.Handler) http.Handler {
	origins := append([]string{}, localCORSOrigins...)
	if site := strings.TrimRight(strings.TrimSpace(siteURL), "/"); site != "" && site != localCORSOrigins[0] {
		origins = append(origins, site)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", IdempotencyHeader, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
