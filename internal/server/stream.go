package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// streamInterval is how often the portfolio snapshot is pushed to
// connected clients.
const streamInterval = 15 * time.Second

// handlePortfolioStream pushes the user's portfolio snapshot over a
// websocket. Snapshots go through the same cache as the REST endpoint,
// so the push interval does not multiply provider traffic.
func (s *Server) handlePortfolioStream(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	if user == "" {
		respondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	s.log.Debug().Str("user_id", user).Msg("Portfolio stream opened")

	ctx := r.Context()
	if err := s.pushSnapshot(ctx, conn, user); err != nil {
		return
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case <-ticker.C:
			if err := s.pushSnapshot(ctx, conn, user); err != nil {
				s.log.Debug().Err(err).Str("user_id", user).Msg("Portfolio stream closed")
				return
			}
		}
	}
}

func (s *Server) pushSnapshot(ctx context.Context, conn *websocket.Conn, user string) error {
	snapshot, err := s.container.Portfolio.Snapshot(user)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user).Msg("Failed to compute snapshot for stream")
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, snapshot)
}
