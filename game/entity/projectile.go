package entity

import "math"

// Projectile homes in on a creature. TargetID is only a lookup key: the
// creature may be gone by the time the projectile moves.
type Projectile struct {
	ID        int64
	TowerID   int64
	TargetID  int64
	Row, Col  float64
	Speed     float64 // cells per second
	Damage    int
	SpawnedAt float64
	Rotation  float64
}

// MoveToward steps the projectile toward (row, col) by at most dist cells and
// returns the remaining distance.
func (p *Projectile) MoveToward(row, col, dist float64) float64 {
	dr, dc := row-p.Row, col-p.Col
	d := math.Hypot(dr, dc)
	if d == 0 {
		return 0
	}
	p.Rotation = math.Atan2(dr, dc)
	if dist >= d {
		p.Row, p.Col = row, col
		return 0
	}
	p.Row += dr / d * dist
	p.Col += dc / d * dist
	return d - dist
}

// DistanceTo returns the straight-line distance to (row, col).
func (p *Projectile) DistanceTo(row, col float64) float64 {
	return math.Hypot(row-p.Row, col-p.Col)
}
