package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type CORSConfig struct {
	AllowOrigins     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// CORS lets the browser client call the API. A "*" origin, or none at all,
// allows any origin.
func CORS(config CORSConfig) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", HeaderXRequestID},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", HeaderXRequestID},
		AllowCredentials: config.AllowCredentials,
		MaxAge:           config.MaxAge,
	}

	anyOrigin := len(config.AllowOrigins) == 0
	for _, o := range config.AllowOrigins {
		if o == "*" {
			anyOrigin = true
			break
		}
	}
	if anyOrigin {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = config.AllowOrigins
	}
	return cors.New(cfg)
}
