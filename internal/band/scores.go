package band

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/encorelive/encore/internal/realtime"
)

// ScoreSink accumulates points for a participant, typically the session
// leaderboard.
type ScoreSink interface {
	AddScore(ctx context.Context, sessionCode, nickname string, points int) error
}

const scoreSinkTimeout = 5 * time.Second

// NewHitScoreHandler returns a hub inbound hook that folds band_hit points
// into the score sink. The sink call runs on its own goroutine so the hub's
// read path never blocks on storage.
func NewHitScoreHandler(scores ScoreSink) realtime.InboundFunc {
	return func(_ string, ev *realtime.Event) {
		if ev.Type != realtime.EventTypeBandHit {
			return
		}
		var p realtime.BandHitPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			log.Warn().Err(err).Msg("dropping malformed hit payload")
			return
		}
		if p.Nickname == "" || p.Points <= 0 {
			return
		}
		code := ev.SessionCode
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), scoreSinkTimeout)
			defer cancel()
			if err := scores.AddScore(ctx, code, p.Nickname, p.Points); err != nil {
				log.Warn().
					Err(err).
					Str("session_code", code).
					Str("nickname", p.Nickname).
					Msg("leaderboard update failed")
			}
		}()
	}
}
