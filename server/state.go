package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tarungka/keyedwire/engine"
)

// StateRouter serves the keyed state of the engine.
func StateRouter(view EngineView) chi.Router {
	router := chi.NewRouter()

	router.Get("/{key}", stateHandler(view))

	return router
}

func stateHandler(view EngineView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		cell, err := view.State(key)
		switch {
		case errors.Is(err, engine.ErrTerminated):
			SendResponseWithHeader(w, false, nil, err.Error(), http.StatusServiceUnavailable, nil)
		case err != nil:
			SendResponseWithHeader(w, false, nil, err.Error(), http.StatusInternalServerError, nil)
		case !cell.Present:
			SendResponseWithHeader(w, false, nil, "no state for key "+key, http.StatusNotFound, nil)
		default:
			SendResponse(w, true, cell, "")
		}
	}
}
