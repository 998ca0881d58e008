// Command viewer renders a local game with ebiten and maps mouse and
// keyboard input to game intents.
package main

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/kasuganosora/towerdefense/cmd/viewer/board"
	"github.com/kasuganosora/towerdefense/config"
	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/event"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/sim"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	hudHeight = 48
	margin    = 8
	flashFor  = 2 * time.Second
)

var (
	colBackground = color.RGBA{0x1e, 0x1e, 0x24, 0xff}
	colCell       = color.RGBA{0x2c, 0x2f, 0x38, 0xff}
	colRoute      = color.RGBA{0x3d, 0x4a, 0x3a, 0xff}
	colSpawn      = color.RGBA{0x8a, 0x2b, 0x2b, 0xff}
	colExit       = color.RGBA{0x2b, 0x5f, 0x8a, 0xff}
	colHover      = color.RGBA{0xff, 0xff, 0xff, 0x30}
	colRange      = color.RGBA{0xff, 0xff, 0xff, 0x60}
	colCreature   = color.RGBA{0xd9, 0x8c, 0x3a, 0xff}
	colHPBack     = color.RGBA{0x55, 0x10, 0x10, 0xff}
	colHP         = color.RGBA{0x4c, 0xd9, 0x4c, 0xff}
	colProjectile = color.RGBA{0xff, 0xee, 0x88, 0xff}

	kindColors = map[entity.Kind]color.RGBA{
		entity.KindCannon: {0x9a, 0x9a, 0xa8, 0xff},
		entity.KindGun:    {0x6a, 0xb0, 0x6a, 0xff},
		entity.KindLaser:  {0xb0, 0x6a, 0xd0, 0xff},
	}
)

// viewer is the ebiten.Game driving a controller in-process.
type viewer struct {
	ctrl   *sim.Controller
	layout board.Layout
	logger *zap.Logger

	last     time.Time
	kind     entity.Kind
	hover    grid.Cell
	hovering bool
	flash    string
	flashAt  time.Time
}

func newViewer(ctrl *sim.Controller, cellSize float64, logger *zap.Logger) *viewer {
	s := ctrl.Snapshot()
	return &viewer{
		ctrl: ctrl,
		layout: board.Layout{
			Rows: s.Rows, Cols: s.Cols, CellSize: cellSize,
			OriginX: margin, OriginY: hudHeight,
		},
		logger: logger,
		last:   time.Now(),
		kind:   entity.KindCannon,
	}
}

func (v *viewer) screenSize() (int, int) {
	w, h := v.layout.Size()
	return int(w) + 2*margin, int(h) + hudHeight + margin
}

func (v *viewer) Layout(_, _ int) (int, int) { return v.screenSize() }

func (v *viewer) Update() error {
	now := time.Now()
	v.ctrl.Tick(float64(now.Sub(v.last)) / float64(time.Millisecond))
	v.last = now

	mx, my := ebiten.CursorPosition()
	v.hover, v.hovering = v.layout.PixelToCell(float64(mx), float64(my))

	v.handleKeys()
	if v.hovering {
		v.handleMouse()
	}
	return nil
}

func (v *viewer) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		if v.ctrl.State() == sim.Running {
			v.report(v.ctrl.Pause())
		} else {
			v.report(v.ctrl.Start())
		}
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		v.ctrl.Reset()
	case inpututil.IsKeyJustPressed(ebiten.Key1):
		v.report(v.ctrl.SetSpeed(1))
	case inpututil.IsKeyJustPressed(ebiten.Key2):
		v.report(v.ctrl.SetSpeed(2))
	case inpututil.IsKeyJustPressed(ebiten.Key4):
		v.report(v.ctrl.SetSpeed(4))
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		v.kind = entity.KindCannon
	case inpututil.IsKeyJustPressed(ebiten.KeyG):
		v.kind = entity.KindGun
	case inpututil.IsKeyJustPressed(ebiten.KeyL):
		v.kind = entity.KindLaser
	case inpututil.IsKeyJustPressed(ebiten.KeyU):
		if t := v.ctrl.TowerAt(v.hover); v.hovering && t != nil {
			_, err := v.ctrl.UpgradeTower(t.ID)
			v.report(err)
		}
	}
}

func (v *viewer) handleMouse() {
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		_, err := v.ctrl.PlaceTower(v.hover, v.kind)
		v.report(err)
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight):
		if t := v.ctrl.TowerAt(v.hover); t != nil {
			_, err := v.ctrl.SellTower(t.ID)
			v.report(err)
		}
	}
}

func (v *viewer) report(err error) {
	if err == nil {
		return
	}
	v.flash = err.Error()
	v.flashAt = time.Now()
	v.logger.Debug("intent rejected", zap.Error(err))
}

func (v *viewer) Draw(screen *ebiten.Image) {
	screen.Fill(colBackground)
	s := v.ctrl.Snapshot()

	onRoute := make(map[grid.Cell]bool, len(s.Route))
	for _, c := range s.Route {
		onRoute[c] = true
	}
	size := float32(v.layout.CellSize)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			fill := colCell
			switch {
			case cell == s.Spawn:
				fill = colSpawn
			case cell == s.Exit:
				fill = colExit
			case onRoute[cell]:
				fill = colRoute
			}
			x, y := v.layout.CellToPixel(cell)
			vector.DrawFilledRect(screen, float32(x)-size/2+1, float32(y)-size/2+1, size-2, size-2, fill, false)
		}
	}

	if v.hovering {
		x, y := v.layout.CellToPixel(v.hover)
		vector.DrawFilledRect(screen, float32(x)-size/2, float32(y)-size/2, size, size, colHover, false)
	}

	for _, t := range s.Towers {
		x, y := v.layout.CellToPixel(t.Cell)
		c, ok := kindColors[t.Kind]
		if !ok {
			c = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
		}
		half := size * 0.35
		vector.DrawFilledRect(screen, float32(x)-half, float32(y)-half, 2*half, 2*half, c, true)
		// Facing is measured from +col toward +row, which matches screen x/y.
		bx := float32(x) + float32(math.Cos(t.Facing))*size*0.45
		by := float32(y) + float32(math.Sin(t.Facing))*size*0.45
		vector.StrokeLine(screen, float32(x), float32(y), bx, by, 3, color.White, true)
		ebitenutil.DebugPrintAt(screen, fmt.Sprint(t.Level), int(x)-3, int(y)-8)
		if v.hovering && t.Cell == v.hover {
			vector.StrokeCircle(screen, float32(x), float32(y), float32(t.Stats.Range*v.layout.CellSize), 1, colRange, true)
		}
	}

	for _, cr := range s.Creatures {
		x, y := v.layout.PointToPixel(cr.Row, cr.Col)
		r := size * 0.25
		vector.DrawFilledCircle(screen, float32(x), float32(y), r, colCreature, true)
		frac := float32(cr.HP) / float32(max(cr.MaxHP, 1))
		vector.DrawFilledRect(screen, float32(x)-r, float32(y)-r-5, 2*r, 3, colHPBack, false)
		vector.DrawFilledRect(screen, float32(x)-r, float32(y)-r-5, 2*r*frac, 3, colHP, false)
	}

	for _, p := range s.Projectiles {
		x, y := v.layout.PointToPixel(p.Row, p.Col)
		vector.DrawFilledCircle(screen, float32(x), float32(y), 3, colProjectile, true)
	}

	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("%s  x%g  money %d  score %d  health %d  wave %d  build %s",
		s.State, s.Speed, s.Economy.Money, s.Economy.Score, s.Economy.Health, s.Wave, v.kind), margin, 4)
	msg := "space start/pause  1/2/4 speed  R reset  C/G/L kind  LMB place  RMB sell  U upgrade"
	if v.flash != "" && time.Since(v.flashAt) < flashFor {
		msg = v.flash
	}
	ebitenutil.DebugPrintAt(screen, msg, margin, 22)
}

var (
	cfgPath  string
	cellSize float64
)

var rootCmd = &cobra.Command{
	Use:          "viewer",
	Short:        "Play a local tower-defense game in a window",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Default()
		if cfgPath != "" {
			var err error
			if cfg, err = config.Load(cfgPath); err != nil {
				return fmt.Errorf("config: %w", err)
			}
		}
		logger := zap.NewNop()
		if cfg.Server.Debug {
			var err error
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
		}
		defer logger.Sync()

		simCfg, err := cfg.SimConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		bus := event.NewBus()
		bus.Register(event.GameOver, 0, "viewer", func(ev event.Event) {
			logger.Info("game over", zap.Float64("at_ms", ev.At))
		})
		ctrl, err := sim.NewController(simCfg, bus, logger)
		if err != nil {
			return err
		}

		v := newViewer(ctrl, cellSize, logger)
		w, h := v.screenSize()
		ebiten.SetWindowSize(w, h)
		ebiten.SetWindowTitle("Tower Defense")
		return ebiten.RunGame(v)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgPath, "config", "", "path to config YAML")
	rootCmd.Flags().Float64Var(&cellSize, "cell", 48, "cell size in pixels")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
