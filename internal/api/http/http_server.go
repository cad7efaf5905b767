package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stabledesk/liquidity-router/internal/api/dto"
	"github.com/stabledesk/liquidity-router/internal/core"
	"github.com/stabledesk/liquidity-router/internal/domain"
	"github.com/stabledesk/liquidity-router/internal/middleware"
	"github.com/stabledesk/liquidity-router/internal/port"
)

type HTTPServer struct {
	Registry *core.Registry
	Ledger   *core.Ledger
	Router   *core.Router

	RateLimitInterval time.Duration
}

func NewHTTPServer(registry *core.Registry, ledger *core.Ledger, router *core.Router) *HTTPServer {
	return &HTTPServer{
		Registry:          registry,
		Ledger:            ledger,
		Router:            router,
		RateLimitInterval: 100 * time.Millisecond,
	}
}

func (s *HTTPServer) Engine() *gin.Engine {
	r := gin.Default()

	rl := middleware.NewRateLimiter(s.RateLimitInterval)
	r.Use(rl.Middleware())

	r.POST("/offers", s.submitOffer)
	r.GET("/offers", s.listOffers)
	r.GET("/offers/:id", s.getOffer)
	r.POST("/offers/:id/available", s.updateAvailable)
	r.POST("/offers/:id/cancel", s.cancelOffer)
	r.POST("/offers/:id/reserve", s.reserve)
	r.GET("/reservations/:id", s.getReservation)
	r.POST("/reservations/:id/commit", s.commitReservation)
	r.POST("/reservations/:id/release", s.releaseReservation)
	r.POST("/route", s.route)

	return r
}

func (s *HTTPServer) Run(addr string) error {
	return s.Engine().Run(addr)
}

func (s *HTTPServer) submitOffer(c *gin.Context) {
	var req dto.SubmitOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": domain.KindValidation})
		return
	}
	offer := &domain.Offer{
		ID:                req.ID,
		Seller:            req.Seller,
		Chain:             req.Chain,
		Token:             req.Token,
		Rate:              req.Rate,
		MinAmount:         req.MinAmount,
		MaxAmount:         req.MaxAmount,
		Available:         req.Available,
		Fee:               req.Fee,
		LatencyMS:         req.LatencyMS,
		SupportsSwap:      req.SupportsSwap,
		SupportsLocalRail: req.SupportsLocalRail,
		Nonce:             req.Nonce,
		ExpiresAt:         req.ExpiresAt,
	}
	created, err := s.Registry.Submit(c.Request.Context(), offer, req.Signature)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertOffer(created))
}

func (s *HTTPServer) updateAvailable(c *gin.Context) {
	var req dto.UpdateAvailableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": domain.KindValidation})
		return
	}
	updated, err := s.Registry.UpdateAvailable(c.Request.Context(), c.Param("id"), req.Available, req.Nonce, req.Signature, req.Seller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertOffer(updated))
}

func (s *HTTPServer) cancelOffer(c *gin.Context) {
	var req dto.CancelOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": domain.KindValidation})
		return
	}
	cancelled, err := s.Registry.Cancel(c.Request.Context(), c.Param("id"), req.Nonce, req.Signature, req.Seller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertOffer(cancelled))
}

func (s *HTTPServer) listOffers(c *gin.Context) {
	var req dto.ListOffersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": domain.KindValidation})
		return
	}
	filter := port.OfferFilter{
		Chain:        req.Chain,
		Token:        req.Token,
		MaxLatencyMS: req.MaxLatencyMS,
		SortBy:       req.SortBy,
		Limit:        req.Limit,
		Offset:       req.Offset,
	}
	var err error
	if filter.MinAmount, err = parseDecimal(req.MinAmount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_amount", "kind": domain.KindValidation})
		return
	}
	if filter.MaxAmount, err = parseDecimal(req.MaxAmount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_amount", "kind": domain.KindValidation})
		return
	}
	if filter.MaxFee, err = parseDecimal(req.MaxFee); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_fee", "kind": domain.KindValidation})
		return
	}
	offers, err := s.Registry.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offers": convertOffers(offers)})
}

func (s *HTTPServer) getOffer(c *gin.Context) {
	offer, err := s.Registry.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertOffer(offer))
}

func (s *HTTPServer) reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": domain.KindValidation})
		return
	}
	res, remaining, err := s.Ledger.Reserve(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReserveResponse{
		ReservationID:      res.ID,
		OfferID:            res.OfferID,
		Quantity:           res.Quantity,
		Status:             string(res.Status),
		RemainingAvailable: remaining,
	})
}

func (s *HTTPServer) getReservation(c *gin.Context) {
	res, err := s.Ledger.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertReservation(res))
}

func (s *HTTPServer) commitReservation(c *gin.Context) {
	res, err := s.Ledger.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertReservation(res))
}

func (s *HTTPServer) releaseReservation(c *gin.Context) {
	res, err := s.Ledger.Release(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertReservation(res))
}

func (s *HTTPServer) route(c *gin.Context) {
	var req dto.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": domain.KindValidation})
		return
	}
	result, err := s.Router.Route(c.Request.Context(), domain.RouteRequest{
		TokenAmount:    req.TokenAmount,
		FiatAmount:     req.FiatAmount,
		Token:          req.Token,
		AllowAltTokens: req.AllowAltTokens,
		MaxLatencyMS:   req.MaxLatencyMS,
		MaxFee:         req.MaxFee,
		Chain:          req.Chain,
		Payer:          req.Payer,
		PaymentRef:     req.PaymentRef,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convertRoute(result))
}

// respondError maps the domain error taxonomy onto HTTP statuses; internal
// detail never reaches the client.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	msg := err.Error()
	switch kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindAuthentication:
		status = http.StatusUnauthorized
	case domain.KindConflict, domain.KindNoLiquidity, domain.KindInsufficientLiquidity:
		status = http.StatusConflict
	case domain.KindNotFound:
		status = http.StatusNotFound
	default:
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func convertOffer(o *domain.Offer) dto.Offer {
	return dto.Offer{
		ID:                o.ID,
		Seller:            o.Seller,
		Chain:             o.Chain,
		Token:             o.Token,
		Rate:              o.Rate,
		MinAmount:         o.MinAmount,
		MaxAmount:         o.MaxAmount,
		Available:         o.Available,
		Fee:               o.Fee,
		LatencyMS:         o.LatencyMS,
		SupportsSwap:      o.SupportsSwap,
		SupportsLocalRail: o.SupportsLocalRail,
		Status:            string(o.Status),
		Nonce:             o.Nonce,
		ExpiresAt:         o.ExpiresAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

func convertOffers(offers []*domain.Offer) []dto.Offer {
	res := make([]dto.Offer, len(offers))
	for i, o := range offers {
		res[i] = convertOffer(o)
	}
	return res
}

func convertReservation(r *domain.Reservation) dto.Reservation {
	return dto.Reservation{
		ID:        r.ID,
		OfferID:   r.OfferID,
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func convertRoute(r *domain.RouteResult) dto.RouteResponse {
	matched := make([]dto.MatchedOffer, len(r.Matched))
	for i, m := range r.Matched {
		matched[i] = dto.MatchedOffer{
			OfferID:       m.OfferID,
			Seller:        m.Seller,
			Rate:          m.Rate,
			Fee:           m.Fee,
			Quantity:      m.Quantity,
			FiatValue:     m.FiatValue,
			ReservationID: m.ReservationID,
			LatencyMS:     m.LatencyMS,
		}
	}
	transfers := make([]dto.PendingTransfer, len(r.PendingTransfers))
	for i, p := range r.PendingTransfers {
		transfers[i] = dto.PendingTransfer{
			ReservationID: p.ReservationID,
			OfferID:       p.OfferID,
			Seller:        p.Seller,
			Quantity:      p.Quantity,
			FiatValue:     p.FiatValue,
			LocalRail:     p.LocalRail,
		}
	}
	return dto.RouteResponse{
		AuditID:       r.AuditID,
		MatchedOffers: matched,
		Totals: dto.Totals{
			Quantity:  r.Totals.Quantity,
			FiatValue: r.Totals.FiatValue,
			LatencyMS: r.Totals.LatencyMS,
		},
		PendingTransfers: transfers,
		AuditSignature:   r.AuditSignature,
	}
}
