package api

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Registrar interface {
	Register(router *gin.RouterGroup)
}

// NewRouter builds the public HTTP surface. An empty origin list allows any
// origin.
func NewRouter(logger *slog.Logger, allowedOrigins []string, handlers ...Registrar) *gin.Engine {
	r := gin.New()

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Retry-After", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = allowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(RequestID())
	r.Use(ClientIP())
	r.Use(StructuredLogger(logger))
	r.Use(gin.Recovery())

	root := r.Group("/")
	for _, h := range handlers {
		h.Register(root)
	}
	return r
}
