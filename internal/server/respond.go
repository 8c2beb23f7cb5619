package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/nasa-media-proxy/pkg/client"
)

const serverErrorMessage = "Server error"

type message struct {
	Message string `json:"message"`
}

func messageBody(msg string) message {
	return message{Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

// errorStatus maps an upstream failure onto the caller's status and message.
// Upstream HTTP errors keep their status and message; anything else is a
// generic 500.
func errorStatus(err error) (int, string) {
	var upErr *client.UpstreamError
	if errors.As(err, &upErr) && upErr.StatusCode >= 400 && upErr.StatusCode <= 599 {
		msg := upErr.Message
		if msg == "" {
			msg = serverErrorMessage
		}
		return upErr.StatusCode, msg
	}
	return http.StatusInternalServerError, serverErrorMessage
}

func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Client went away")
		return
	}

	status, msg := errorStatus(err)
	hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("Upstream request failed")
	writeJSON(w, status, messageBody(msg))
}
