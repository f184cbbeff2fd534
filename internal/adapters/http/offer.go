package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/peerglass/peerglass/internal/adapters/rtc"
	"github.com/peerglass/peerglass/internal/app"
	"github.com/peerglass/peerglass/internal/app/record"
	"github.com/peerglass/peerglass/internal/app/session"
	"github.com/peerglass/peerglass/internal/config"
	"github.com/peerglass/peerglass/internal/domain"
	"github.com/peerglass/peerglass/internal/vision"
)

// OfferRequest mirrors the body posted by the demo page: a full SDP
// offer plus the requested per-frame transform.
type OfferRequest struct {
	SDP            string `json:"sdp" binding:"required"`
	Type           string `json:"type" binding:"required"`
	VideoTransform string `json:"video_transform"`
}

type OfferResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

type OfferController struct {
	cfg *config.Config
	reg *app.Registry
}

func NewOfferController(cfg *config.Config, reg *app.Registry) *OfferController {
	return &OfferController{cfg: cfg, reg: reg}
}

// HandleOffer creates one media session per posted offer and answers
// with the fully gathered local description. ctx is the server
// lifetime: sessions outlive the request and die with the server.
func (ctl *OfferController) HandleOffer(ctx context.Context, c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid offer"})
		return
	}
	if webrtc.NewSDPType(req.Type) != webrtc.SDPTypeOffer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be offer"})
		return
	}

	id := domain.NewSessionID()
	logger := log.With().Str("module", "adapters.http").Str("session", string(id)).Logger()

	mc, err := rtc.NewConnection(rtc.Config(ctl.cfg.StunURLs), id)
	if err != nil {
		logger.Error().Err(err).Msg("create peer connection")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "engine unavailable"})
		return
	}

	var sink record.Sink = record.Blackhole{}
	if base := recordingBase(ctl.cfg.RecordTo, string(id)); base != "" {
		sink = record.NewFileSink(base)
	}

	mgr := session.NewManager(session.Options{
		ID:       id,
		Media:    mc,
		Mode:     vision.ParseMode(req.VideoTransform),
		Sink:     sink,
		OnClosed: ctl.reg.Remove,
	})
	ctl.reg.Add(mgr)

	answer, err := mgr.HandleOffer(ctx, webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  req.SDP,
	})
	if err != nil {
		logger.Error().Err(err).Msg("offer negotiation failed")
		mgr.Close()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "negotiation failed"})
		return
	}

	logger.Info().Str("transform", req.VideoTransform).Msg("session answered")
	c.JSON(http.StatusOK, OfferResponse{SDP: answer.SDP, Type: answer.Type.String()})
}
