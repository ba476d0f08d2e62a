package catalog

import (
	"fmt"
	"strings"

	"github.com/nikolayk812/grocery-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type promotionDTO struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Scope          string              `json:"scope"`
	Type           string              `json:"type"`
	PercentOff     decimal.Decimal     `json:"percentOff"`
	AmountOff      decimal.Decimal     `json:"amountOff"`
	FixedPrice     decimal.Decimal     `json:"fixedPrice"`
	BuyQty         int                 `json:"buyQty"`
	GetQty         int                 `json:"getQty"`
	MinOrderAmount decimal.NullDecimal `json:"minOrderAmount"`
}

type productDTO struct {
	ID string `json:"id"`
}

func mapPromotionDTOToDomain(dto promotionDTO) (domain.Promotion, error) {
	if dto.ID == "" {
		return domain.Promotion{}, fmt.Errorf("promotion id is empty")
	}

	scope, err := parseScope(dto.Scope)
	if err != nil {
		return domain.Promotion{}, err
	}

	return domain.Promotion{
		ID:             dto.ID,
		Name:           dto.Name,
		Scope:          scope,
		Type:           domain.PromotionType(strings.ToUpper(strings.TrimSpace(dto.Type))),
		PercentOff:     dto.PercentOff,
		AmountOff:      dto.AmountOff,
		FixedPrice:     dto.FixedPrice,
		BuyQty:         dto.BuyQty,
		GetQty:         dto.GetQty,
		MinOrderAmount: dto.MinOrderAmount,
	}, nil
}

func parseScope(raw string) (domain.PromotionScope, error) {
	scope := domain.PromotionScope(strings.ToUpper(strings.TrimSpace(raw)))

	switch scope {
	case domain.ScopeOrder, domain.ScopeProduct:
		return scope, nil
	default:
		return "", fmt.Errorf("scope[%s] is not valid", raw)
	}
}
