// Package api assembles the HTTP surface of a room.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/towerdefense/api/rest"
	"github.com/kasuganosora/towerdefense/api/ws"
	"github.com/kasuganosora/towerdefense/audit"
	"github.com/kasuganosora/towerdefense/config"
	"github.com/kasuganosora/towerdefense/game/room"
	mw "github.com/kasuganosora/towerdefense/middleware"
	"go.uber.org/zap"
)

// NewEngine builds the gin engine for rm. Limiters may be shared with a
// scheduler that prunes them. Intents are recorded into trail when it is
// not nil.
func NewEngine(cfg config.ServerConfig, rm *room.Room, limiters *mw.Limiters, trail *audit.Service, logger *zap.Logger) (*gin.Engine, error) {
	allow, err := mw.ParseAllowlist(cfg.IntentAllowlist)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(mw.RequestID(), mw.AccessLog(logger, "/health"), mw.Recovery(logger))

	gameH := rest.NewGameHandler(rm)
	gameH.Register(r, mw.Audit(trail), mw.Allowlist(allow), mw.RateLimit(limiters))
	if trail != nil {
		r.GET("/api/audit", rest.NewAuditHandler(trail).Recent)
	}

	wsRouter := ws.NewRouter(logger)
	wsRouter.Audit(trail)
	ws.RegisterIntents(wsRouter, rm)
	wsH := ws.NewHandler(rm, wsRouter, cfg.AllowedOrigins, logger)
	r.GET("/ws", wsH.ServeWS)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "not found"})
	})
	return r, nil
}
