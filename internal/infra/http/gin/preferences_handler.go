package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bagsy/internal/domain/negotiation"
)

type PreferencesHandler struct {
	Preferences negotiation.PreferencesRepository
}

type preferencesPayload struct {
	Enabled             bool            `json:"enabled"`
	MinAcceptablePrice  decimal.Decimal `json:"min_acceptable_price,omitempty"`
	MaxAcceptablePrice  decimal.Decimal `json:"max_acceptable_price,omitempty"`
	AutoAcceptThreshold decimal.Decimal `json:"auto_accept_threshold,omitempty"`
	Strategy            string          `json:"strategy,omitempty"`
	MaxCounterOffers    int             `json:"max_counter_offers,omitempty"`
}

func (h PreferencesHandler) Get(c *gin.Context) {
	prefs, err := h.Preferences.ByUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, negotiation.ErrPreferencesNotFound) {
			// Absence means the user never opted in.
			c.JSON(http.StatusOK, preferencesPayload{Enabled: false})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, preferencesPayload{
		Enabled:             prefs.Enabled,
		MinAcceptablePrice:  prefs.MinAcceptablePrice,
		MaxAcceptablePrice:  prefs.MaxAcceptablePrice,
		AutoAcceptThreshold: prefs.AutoAcceptThreshold,
		Strategy:            string(prefs.Strategy),
		MaxCounterOffers:    prefs.MaxCounterOffers,
	})
}

func (h PreferencesHandler) Put(c *gin.Context) {
	var req preferencesPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	strategy := negotiation.Strategy(req.Strategy)
	if req.Strategy != "" && !strategy.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown strategy"})
		return
	}
	prefs := &negotiation.AgentPreferences{
		UserID:              c.Param("id"),
		Enabled:             req.Enabled,
		MinAcceptablePrice:  req.MinAcceptablePrice,
		MaxAcceptablePrice:  req.MaxAcceptablePrice,
		AutoAcceptThreshold: req.AutoAcceptThreshold,
		Strategy:            strategy,
		MaxCounterOffers:    req.MaxCounterOffers,
	}
	if err := h.Preferences.Save(c.Request.Context(), prefs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}

var _ PreferencesHTTP = PreferencesHandler{}
