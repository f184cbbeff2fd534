package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/peerglass/peerglass/internal/domain"
	"github.com/peerglass/peerglass/internal/protocol"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump drives the connection. On exit the participant leaves the
// directory, so a drop is always observed as a presence change.
func (ctl *Controller) readPump(ctx context.Context, id domain.ParticipantID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("id", string(id)).Msg("readPump closing")
		ctl.Hub.Leave(id)
		ctl.limiter.Forget(id)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("id", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("id", string(id)).Msg("readPump read error")
				return
			}
			ctl.handleMessage(id, c, data)
		}
	}
}

func (ctl *Controller) handleMessage(id domain.ParticipantID, c *wsConn, data []byte) {
	msg, err := protocol.ParseClientMessage(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("rejected message")
		return
	}

	switch msg.Type {
	case protocol.TypeJoin:
		if err := domain.ValidateName(msg.Name); err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("id", string(id)).Msg("rejected join name")
			return
		}
		ctl.Hub.Register(id, msg.Name, c)
	case protocol.TypeSignal:
		if !ctl.limiter.Allow(id) {
			log.Warn().Str("module", "signal").Str("id", string(id)).Msg("relay rate exceeded, dropping")
			return
		}
		ctl.Hub.RelaySignal(id, msg.To, msg.Data)
	case protocol.TypePeerRequest:
		if !ctl.limiter.Allow(id) {
			log.Warn().Str("module", "signal").Str("id", string(id)).Msg("relay rate exceeded, dropping")
			return
		}
		ctl.Hub.RelayPeerRequest(id, msg.To)
	case protocol.TypePeerAccept:
		ctl.Hub.RelayPeerAccept(id, msg.To)
	default:
		log.Warn().Str("module", "signal").Str("type", string(msg.Type)).Msg("unknown signal")
	}
}
