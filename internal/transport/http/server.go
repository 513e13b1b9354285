package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirespace-server/internal/auth"
	"github.com/vovakirdan/wirespace-server/internal/config"
	"github.com/vovakirdan/wirespace-server/internal/core"
	"github.com/vovakirdan/wirespace-server/internal/store"
)

// NewServer builds the HTTP server. /ws is mounted on the mux directly because
// the upgrade hijacks the connection; gin serves the health check and the
// space API.
func NewServer(hub *core.Hub, st store.SpaceStore, resolver *auth.Resolver, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	spaces := NewSpaceHandlers(st, hub.Rooms(), logger)
	api := router.Group("/api")
	{
		api.GET("/spaces", spaces.ListSpaces)
		api.GET("/spaces/:id/occupancy", spaces.Occupancy)
		api.POST("/spaces", AuthMiddleware(resolver, logger), spaces.CreateSpace)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, resolver, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
