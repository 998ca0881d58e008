package rest

import "github.com/gin-gonic/gin"

// Register mounts the game routes on r. The intents middleware only wraps
// requests that change game state.
func (h *GameHandler) Register(r gin.IRouter, intents ...gin.HandlerFunc) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/snapshot", h.Snapshot)
	api.GET("/placement", h.Placement)
	api.GET("/towers/kinds", h.Kinds)

	w := api.Group("", intents...)
	w.POST("/game/start", h.Start)
	w.POST("/game/pause", h.Pause)
	w.POST("/game/reset", h.Reset)
	w.POST("/game/speed", h.SetSpeed)
	w.POST("/towers", h.PlaceTower)
	w.POST("/towers/:id/upgrade", h.UpgradeTower)
	w.DELETE("/towers/:id", h.SellTower)
}
