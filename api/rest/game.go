package rest

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/room"
	"github.com/kasuganosora/towerdefense/game/sim"
)

// GameHandler exposes a room's intents over HTTP.
type GameHandler struct {
	room *room.Room
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(r *room.Room) *GameHandler {
	return &GameHandler{room: r}
}

// Health reports liveness.
// GET /health
func (h *GameHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "room": h.room.ID})
}

// Snapshot returns the full game state.
// GET /api/snapshot
func (h *GameHandler) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.room.Snapshot())
}

// Start begins or resumes the game.
// POST /api/game/start
func (h *GameHandler) Start(c *gin.Context) {
	if err := h.room.Start(); err != nil {
		writeError(c, err)
		return
	}
	h.status(c)
}

// Pause freezes the game.
// POST /api/game/pause
func (h *GameHandler) Pause(c *gin.Context) {
	if err := h.room.Pause(); err != nil {
		writeError(c, err)
		return
	}
	h.status(c)
}

// Reset clears the board.
// POST /api/game/reset
func (h *GameHandler) Reset(c *gin.Context) {
	h.room.Reset()
	h.status(c)
}

func (h *GameHandler) status(c *gin.Context) {
	s := h.room.Snapshot()
	c.JSON(http.StatusOK, gin.H{"state": s.State, "speed": s.Speed, "economy": s.Economy})
}

type speedRequest struct {
	Factor float64 `json:"factor" binding:"required"`
}

// SetSpeed changes the game speed.
// POST /api/game/speed
func (h *GameHandler) SetSpeed(c *gin.Context) {
	var req speedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.room.SetSpeed(req.Factor); err != nil {
		writeError(c, err)
		return
	}
	h.status(c)
}

type placeRequest struct {
	Row  *int        `json:"row" binding:"required"`
	Col  *int        `json:"col" binding:"required"`
	Kind entity.Kind `json:"kind"`
}

// PlaceTower buys a tower. Kind defaults to cannon.
// POST /api/towers
func (h *GameHandler) PlaceTower(c *gin.Context) {
	var req placeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Kind == "" {
		req.Kind = entity.KindCannon
	}
	t, err := h.room.PlaceTower(grid.Cell{Row: *req.Row, Col: *req.Col}, req.Kind)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tower": towerJSON(t), "economy": h.room.Snapshot().Economy})
}

// UpgradeTower raises a tower one level.
// POST /api/towers/:id/upgrade
func (h *GameHandler) UpgradeTower(c *gin.Context) {
	id, ok := towerID(c)
	if !ok {
		return
	}
	t, err := h.room.UpgradeTower(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tower": towerJSON(t), "economy": h.room.Snapshot().Economy})
}

// SellTower removes a tower and refunds its sell value.
// DELETE /api/towers/:id
func (h *GameHandler) SellTower(c *gin.Context) {
	id, ok := towerID(c)
	if !ok {
		return
	}
	refund, err := h.room.SellTower(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refund": refund, "economy": h.room.Snapshot().Economy})
}

// Placement previews whether a tower fits at a cell.
// GET /api/placement?row=&col=
func (h *GameHandler) Placement(c *gin.Context) {
	row, errRow := strconv.Atoi(c.Query("row"))
	col, errCol := strconv.Atoi(c.Query("col"))
	if errRow != nil || errCol != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "row and col must be integers"})
		return
	}
	err := h.room.CheckPlacement(grid.Cell{Row: row, Col: col})
	resp := gin.H{"row": row, "col": col, "placeable": err == nil}
	if err != nil {
		resp["reason"] = grid.RejectionReason(err)
	}
	c.JSON(http.StatusOK, resp)
}

// Kinds lists every tower kind with its per-level stats.
// GET /api/towers/kinds
func (h *GameHandler) Kinds(c *gin.Context) {
	table := h.room.Table()
	out := make(map[entity.Kind]gin.H, len(table.Kinds()))
	for _, k := range table.Kinds() {
		levels := make([]entity.Stats, 0, table.MaxLevel())
		for lvl := 1; lvl <= table.MaxLevel(); lvl++ {
			st, err := table.Stats(k, lvl)
			if err != nil {
				break
			}
			levels = append(levels, st)
		}
		out[k] = gin.H{"capability": table.Capability(k).String(), "levels": levels}
	}
	c.JSON(http.StatusOK, out)
}

func towerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tower id"})
		return 0, false
	}
	return id, true
}

func towerJSON(t entity.Tower) gin.H {
	return gin.H{
		"id":    t.ID,
		"cell":  t.Cell,
		"kind":  t.Kind,
		"level": t.Level,
		"stats": t.Stats,
	}
}

// StatusFor maps a domain error onto an HTTP status code. A nil error is
// 200.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, grid.ErrPlacementRejected),
		errors.Is(err, sim.ErrMaxLevel),
		errors.Is(err, sim.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, sim.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, sim.ErrTowerNotFound):
		return http.StatusNotFound
	case errors.Is(err, sim.ErrInvalidSpeed), errors.Is(err, entity.ErrUnknownKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := StatusFor(err)
	var pe *grid.PlacementError
	switch {
	case errors.As(err, &pe):
		c.JSON(status, gin.H{"error": "placement rejected", "reason": pe.Reason, "cell": pe.Cell})
	case status == http.StatusInternalServerError:
		c.JSON(status, gin.H{"error": "internal server error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
