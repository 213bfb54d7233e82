package service

import (
	"context"
	"errors"
	"fmt"

	"medorder-service/config"
	"medorder-service/internal/catalog"
	"medorder-service/internal/models"
	"medorder-service/internal/store"
	"medorder-service/internal/util"

	"go.uber.org/zap"
)

// PricingService resolves the final price of a service for a user: base price
// from the catalog plus at most one discount source. A promo code supplied by
// the user takes precedence over a pending referral discount.
type PricingService struct {
	store  *store.Store
	cfg    config.BusinessConfig
	logger *zap.Logger
}

// NewPricingService creates a new pricing service
func NewPricingService(st *store.Store, cfg config.BusinessConfig) *PricingService {
	return &PricingService{
		store:  st,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// PriceQuote is the resolver's output. PromoRejection carries the ledger's
// reason when a supplied code could not be applied; the quote itself is still
// valid at the undiscounted price.
type PriceQuote struct {
	ServiceType       string              `json:"service_type"`
	NeedsDemographics bool                `json:"needs_demographics"`
	BasePrice         int64               `json:"base_price"`
	Discount          int64               `json:"discount"`
	DiscountKind      models.DiscountKind `json:"discount_kind"`
	PromoCode         string              `json:"promo_code,omitempty"`
	ReferrerID        int64               `json:"referrer_id,omitempty"`
	FinalPrice        int64               `json:"final_price"`
	PromoRejection    string              `json:"promo_rejection,omitempty"`
}

// Resolve computes the price for a service. The promo check here is advisory
// (lookup only); the redemption itself is atomic and happens when the order
// is created.
func (s *PricingService) Resolve(ctx context.Context, serviceType string, userID int64,
	promoCode string) (*PriceQuote, error) {
	ctx, span := util.StartSpan(ctx, "PricingService.Resolve")
	defer span.End()

	// An empty service type is the explicit "not specified" path: it prices
	// at the configured default. Anything else must exist in the catalog.
	svc := catalog.Service{Name: "Не указано", Price: s.cfg.DefaultServicePrice, NeedsDemographics: true}
	if serviceType != "" {
		var err error
		svc, err = catalog.Lookup(serviceType)
		if err != nil {
			return nil, fmt.Errorf("pricing: %w", err)
		}
	}

	quote := &PriceQuote{
		ServiceType:       svc.Name,
		NeedsDemographics: svc.NeedsDemographics,
		BasePrice:         svc.Price,
		DiscountKind:      models.DiscountNone,
		FinalPrice:        svc.Price,
	}

	if promoCode != "" {
		s.applyPromoQuote(ctx, quote, userID, promoCode)
		return quote, nil
	}

	ref, err := s.store.GetPendingReferral(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pricing: referral check failed: %w", err)
	}
	if ref != nil {
		quote.Discount = models.PercentOf(svc.Price, s.cfg.ReferredDiscountPercent)
		quote.DiscountKind = models.DiscountReferral
		quote.ReferrerID = ref.ReferrerID
		quote.FinalPrice = models.FinalPrice(svc.Price, quote.Discount)
	}

	return quote, nil
}

// applyPromoQuote validates a code against the promo ledger. A failed code
// never fails the quote; the rejection reason is surfaced to the caller.
func (s *PricingService) applyPromoQuote(ctx context.Context, quote *PriceQuote,
	userID int64, code string) {
	promo, err := s.store.GetPromoCode(ctx, code)
	if err != nil {
		quote.PromoRejection = promoRejectionReason(err)
		if !errors.Is(err, store.ErrPromoNotFound) {
			s.logger.Error("Promo lookup failed", zap.String("code", code), zap.Error(err))
		}
		return
	}

	if promo.UsesLeft == 0 {
		quote.PromoRejection = promoRejectionReason(store.ErrPromoExhausted)
		return
	}

	used, err := s.store.HasUsedPromo(ctx, userID, code)
	if err != nil {
		s.logger.Error("Used-promo check failed", zap.String("code", code), zap.Error(err))
		quote.PromoRejection = promoRejectionReason(store.ErrPromoNotFound)
		return
	}
	if used {
		quote.PromoRejection = promoRejectionReason(store.ErrPromoAlreadyUsed)
		return
	}

	quote.Discount = store.PromoDiscount(promo.DiscountKind, promo.DiscountValue, quote.BasePrice)
	quote.DiscountKind = models.DiscountPromo
	quote.PromoCode = promo.Code
	quote.FinalPrice = models.FinalPrice(quote.BasePrice, quote.Discount)
}

// promoRejectionReason maps ledger errors onto user-facing reasons.
func promoRejectionReason(err error) string {
	switch {
	case errors.Is(err, store.ErrPromoExhausted):
		return "Промокод закончился"
	case errors.Is(err, store.ErrPromoAlreadyUsed):
		return "Вы уже использовали этот промокод"
	default:
		return "Промокод не найден или недействителен"
	}
}
