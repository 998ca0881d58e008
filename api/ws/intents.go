package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kasuganosora/towerdefense/game/entity"
	"github.com/kasuganosora/towerdefense/game/grid"
	"github.com/kasuganosora/towerdefense/game/room"
)

// Client message types.
const (
	MsgStart          = "start"
	MsgPause          = "pause"
	MsgReset          = "reset"
	MsgSetSpeed       = "set_speed"
	MsgPlaceTower     = "place_tower"
	MsgSellTower      = "sell_tower"
	MsgUpgradeTower   = "upgrade_tower"
	MsgCheckPlacement = "check_placement"
	MsgSnapshot       = "snapshot"
)

type speedPayload struct {
	Factor float64 `json:"factor"`
}

type cellPayload struct {
	Row  int         `json:"row"`
	Col  int         `json:"col"`
	Kind entity.Kind `json:"kind,omitempty"`
}

type towerPayload struct {
	TowerID int64 `json:"tower_id"`
}

// RegisterIntents binds every game intent to rm.
func RegisterIntents(r *Router, rm *room.Room) {
	r.On(MsgStart, func(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
		return ack(s, seq, rm.Start())
	})
	r.On(MsgPause, func(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
		return ack(s, seq, rm.Pause())
	})
	r.On(MsgReset, func(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
		rm.Reset()
		return ack(s, seq, nil)
	})
	r.On(MsgSetSpeed, func(_ context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var p speedPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		return ack(s, seq, rm.SetSpeed(p.Factor))
	})
	r.On(MsgPlaceTower, func(_ context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var p cellPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		if p.Kind == "" {
			p.Kind = entity.KindCannon
		}
		t, err := rm.PlaceTower(grid.Cell{Row: p.Row, Col: p.Col}, p.Kind)
		if err != nil {
			return err
		}
		s.Reply(seq, TypeReply, map[string]any{"tower_id": t.ID, "level": t.Level})
		return nil
	})
	r.On(MsgSellTower, func(_ context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var p towerPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		refund, err := rm.SellTower(p.TowerID)
		if err != nil {
			return err
		}
		s.Reply(seq, TypeReply, map[string]any{"tower_id": p.TowerID, "refund": refund})
		return nil
	})
	r.On(MsgUpgradeTower, func(_ context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var p towerPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		t, err := rm.UpgradeTower(p.TowerID)
		if err != nil {
			return err
		}
		s.Reply(seq, TypeReply, map[string]any{"tower_id": t.ID, "level": t.Level})
		return nil
	})
	r.On(MsgCheckPlacement, func(_ context.Context, s *Session, seq uint64, raw json.RawMessage) error {
		var p cellPayload
		if err := decode(raw, &p); err != nil {
			return err
		}
		err := rm.CheckPlacement(grid.Cell{Row: p.Row, Col: p.Col})
		s.Reply(seq, TypeReply, map[string]any{
			"placeable": err == nil,
			"reason":    grid.RejectionReason(err),
		})
		return nil
	})
	r.On(MsgSnapshot, func(_ context.Context, s *Session, seq uint64, _ json.RawMessage) error {
		s.Reply(seq, TypeReply, rm.Snapshot())
		return nil
	})
}

func ack(s *Session, seq uint64, err error) error {
	if err != nil {
		return err
	}
	s.Reply(seq, TypeReply, map[string]bool{"ok": true})
	return nil
}

// ErrBadPayload wraps intent payloads that fail to decode.
var ErrBadPayload = errors.New("bad payload")

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing", ErrBadPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}

func errorPayload(err error) ErrorPayload {
	return ErrorPayload{Error: err.Error(), Reason: string(grid.RejectionReason(err))}
}
