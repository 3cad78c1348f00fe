package server

import (
	"github.com/tarungka/keyedwire/engine"
	"github.com/tarungka/keyedwire/state"
)

// EngineView is the read-only part of an engine the server exposes.
type EngineView interface {
	Stats() engine.Stats
	State(key string) (state.StateCell, error)
}

type ResponseModel struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
