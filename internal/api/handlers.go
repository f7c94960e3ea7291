package api

import (
	"errors"
	"net/http"
	"time"

	"trade-signal-bot/internal/auth"
	"trade-signal-bot/internal/signal"

	"github.com/gin-gonic/gin"
)

// signalView is the JSON shape served for a signal. Derived figures are
// computed on read so the API never serves stale risk numbers.
type signalView struct {
	ID               string             `json:"id"`
	Asset            string             `json:"asset"`
	Direction        signal.Direction   `json:"direction"`
	Entry            *float64           `json:"entry"`
	StopLoss         *float64           `json:"stop_loss"`
	StopLossOriginal *float64           `json:"stop_loss_original"`
	TakeProfits      map[string]float64 `json:"take_profits"`
	Plan             map[string]float64 `json:"plan"`
	Fills            []signal.Fill      `json:"fills"`
	TPHits           map[string]bool    `json:"tp_hits"`
	Status           string             `json:"status"`
	ValidForSummary  bool               `json:"valid_for_summary"`
	Reason           string             `json:"reason,omitempty"`
	MessageURL       string             `json:"message_url,omitempty"`
	ClosedPercent    float64            `json:"closed_percent"`
	RealizedR        *float64           `json:"realized_r,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func viewFromSignal(s *signal.Signal) signalView {
	view := signalView{
		ID:               s.ID,
		Asset:            s.Asset,
		Direction:        s.Direction,
		Entry:            s.Entry,
		StopLoss:         s.StopLoss,
		StopLossOriginal: s.StopLossOriginal,
		TakeProfits:      s.TakeProfits,
		Plan:             s.Plan,
		Fills:            s.Fills,
		TPHits:           s.TPHits,
		Status:           s.Status,
		ValidForSummary:  s.ValidForSummary,
		Reason:           s.Reason,
		MessageURL:       s.MessageURL,
		ClosedPercent:    signal.CumulativePercent(s),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if r, ok := signal.RealizedR(s); ok {
		view.RealizedR = &r
	}
	return view
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	pair, err := s.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		s.logger.Error("Login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (s *Server) handleListSignals(c *gin.Context) {
	signals, err := s.bot.ListSignals(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list signals", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list signals"})
		return
	}

	views := make([]signalView, 0, len(signals))
	for _, sig := range signals {
		views = append(views, viewFromSignal(sig))
	}
	c.JSON(http.StatusOK, gin.H{"signals": views, "count": len(views)})
}

func (s *Server) handleGetSignal(c *gin.Context) {
	sig, err := s.bot.GetSignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, signal.ErrSignalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
			return
		}
		s.logger.Error("Failed to load signal", "signal_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signal"})
		return
	}
	c.JSON(http.StatusOK, viewFromSignal(sig))
}

func (s *Server) handleGetRisk(c *gin.Context) {
	sig, err := s.bot.GetSignal(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, signal.ErrSignalNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "signal not found"})
			return
		}
		s.logger.Error("Failed to load signal", "signal_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signal"})
		return
	}

	resp := gin.H{
		"signal_id":         sig.ID,
		"multiples":         signal.Multiples(sig),
		"closed_percent":    signal.CumulativePercent(sig),
		"remaining_percent": signal.RemainingPercent(sig),
	}
	if r, ok := signal.RealizedR(sig); ok {
		resp["realized_r"] = r
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRefreshSummary(c *gin.Context) {
	if err := s.bot.RefreshSummary(c.Request.Context()); err != nil {
		s.logger.Error("Summary refresh failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "summary refresh failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "refreshed"})
}
