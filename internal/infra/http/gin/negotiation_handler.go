package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"bagsy/internal/app/negotiating"
	"bagsy/internal/domain/negotiation"
)

type NegotiationHandler struct {
	Orchestrator *negotiating.Orchestrator
	Negotiations negotiation.Repository
}

type openNegotiationRequest struct {
	ListingID     string          `json:"listing_id" binding:"required"`
	OwnerID       string          `json:"owner_id" binding:"required"`
	RenterID      string          `json:"renter_id" binding:"required"`
	ListingPrice  decimal.Decimal `json:"listing_price"`
	SpaceCategory string          `json:"space_category"`
	Location      string          `json:"location"`
	OfferPrice    decimal.Decimal `json:"offer_price"`
	Message       string          `json:"message"`
}

func (h NegotiationHandler) Open(c *gin.Context) {
	var req openNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.Orchestrator.Open(c.Request.Context(), negotiating.OpenParams{
		ListingID:     req.ListingID,
		OwnerID:       req.OwnerID,
		RenterID:      req.RenterID,
		ListingPrice:  req.ListingPrice,
		SpaceCategory: req.SpaceCategory,
		Location:      req.Location,
		InitialOffer:  req.OfferPrice,
		Message:       req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toNegotiationResponse(n))
}

func (h NegotiationHandler) Get(c *gin.Context) {
	n, err := h.Negotiations.ByID(c.Request.Context(), negotiation.NegotiationID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNegotiationResponse(n))
}

func (h NegotiationHandler) ListMine(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter required"})
		return
	}
	list, err := h.Negotiations.ListByParty(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]negotiationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toNegotiationResponse(n))
	}
	c.JSON(http.StatusOK, gin.H{"negotiations": out})
}

type submitOfferRequest struct {
	UserID  string          `json:"user_id" binding:"required"`
	Price   decimal.Decimal `json:"price"`
	Message string          `json:"message"`
}

func (h NegotiationHandler) SubmitOffer(c *gin.Context) {
	var req submitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.Orchestrator.SubmitOffer(c.Request.Context(), negotiation.NegotiationID(c.Param("id")), req.UserID, req.Price, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, toNegotiationResponse(n))
}

type respondRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Reason string `json:"reason"`
}

func (h NegotiationHandler) Accept(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.Orchestrator.Accept(c.Request.Context(), negotiation.NegotiationID(c.Param("id")), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNegotiationResponse(n))
}

func (h NegotiationHandler) Reject(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.Orchestrator.Reject(c.Request.Context(), negotiation.NegotiationID(c.Param("id")), req.UserID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toNegotiationResponse(n))
}

type offerResponse struct {
	ID        string `json:"id"`
	Price     string `json:"price"`
	FromParty string `json:"from_party"`
	ToParty   string `json:"to_party"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type negotiationResponse struct {
	ID            string          `json:"id"`
	ListingID     string          `json:"listing_id"`
	OwnerID       string          `json:"owner_id"`
	RenterID      string          `json:"renter_id"`
	ListingPrice  string          `json:"listing_price"`
	SpaceCategory string          `json:"space_category,omitempty"`
	Location      string          `json:"location,omitempty"`
	Status        string          `json:"status"`
	Round         int             `json:"round"`
	Offers        []offerResponse `json:"offers"`
}

func toNegotiationResponse(n *negotiation.Negotiation) negotiationResponse {
	history := n.History()
	offers := make([]offerResponse, 0, len(history))
	for _, o := range history {
		offers = append(offers, offerResponse{
			ID:        string(o.ID),
			Price:     o.Price.StringFixed(2),
			FromParty: string(o.FromParty),
			ToParty:   string(o.ToParty),
			Message:   o.Message,
			Status:    string(o.Status),
			CreatedAt: o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return negotiationResponse{
		ID:            string(n.ID),
		ListingID:     n.ListingID,
		OwnerID:       n.OwnerID,
		RenterID:      n.RenterID,
		ListingPrice:  n.ListingPrice.StringFixed(2),
		SpaceCategory: n.SpaceCategory,
		Location:      n.Location,
		Status:        string(n.Status),
		Round:         n.Round(),
		Offers:        offers,
	}
}

func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, negotiation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, negotiation.ErrUnknownParticipant):
		status = http.StatusForbidden
	case errors.Is(err, negotiation.ErrInvalidState), errors.Is(err, negotiating.ErrNegotiationClosed):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

var _ NegotiationHTTP = NegotiationHandler{}
