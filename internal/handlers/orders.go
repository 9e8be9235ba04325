package handlers

import (
	apperrors "exchange/internal/errors"
	"exchange/internal/models"
	"exchange/internal/repositories"
	"exchange/internal/services/order"
	"exchange/internal/utils"
	"exchange/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type usdcPurchaseRequest struct {
	AmountUSD   decimal.Decimal `json:"amountUsd" validate:"required,gt=0"`
	USDCAddress string          `json:"usdcAddress" validate:"required,solana_address"`
}

type usdtPurchaseRequest struct {
	AmountUSD   decimal.Decimal `json:"amountUsd" validate:"required,gt=0"`
	USDTAddress string          `json:"usdtAddress" validate:"required,usdt_address"`
}

type sepaDepositRequest struct {
	AmountEUR decimal.Decimal `json:"amountEur" validate:"required,gt=0"`
	IBAN      string          `json:"iban" validate:"required,iban"`
}

// PurchaseUSDC handles POST /api/usdc/purchase.
func (h *OrderHandler) PurchaseUSDC(c *fiber.Ctx) error {
	var input usdcPurchaseRequest
	if err := parseAndValidate(c, &input); err != nil {
		return utils.Error(c, err)
	}
	return h.create(c, models.OrderKindUSDC, input.AmountUSD, input.USDCAddress)
}

// PurchaseUSDT handles POST /api/usdt/purchase.
func (h *OrderHandler) PurchaseUSDT(c *fiber.Ctx) error {
	var input usdtPurchaseRequest
	if err := parseAndValidate(c, &input); err != nil {
		return utils.Error(c, err)
	}
	return h.create(c, models.OrderKindUSDT, input.AmountUSD, input.USDTAddress)
}

// DepositSEPA handles POST /api/sepa/deposit.
func (h *OrderHandler) DepositSEPA(c *fiber.Ctx) error {
	var input sepaDepositRequest
	if err := parseAndValidate(c, &input); err != nil {
		return utils.Error(c, err)
	}
	return h.create(c, models.OrderKindSEPA, input.AmountEUR, input.IBAN)
}

func (h *OrderHandler) create(c *fiber.Ctx, kind models.OrderKind, amount decimal.Decimal, destination string) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Error(c, err)
	}

	created, err := h.orders.Create(c.UserContext(), order.CreateRequest{
		UserID:      claims.UserID,
		Kind:        kind,
		Amount:      amount,
		Destination: destination,
	})
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"message": "Order created", "order": created})
}

// ListOrders handles GET /api/orders for the current user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Error(c, err)
	}

	p := utils.ParsePage(c, 20)
	orders, total, err := h.orders.List(c.UserContext(), repositories.OrderFilter{UserID: claims.UserID}, p.Offset(), p.Limit)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, utils.NewPaged(orders, p, total))
}

func parseAndValidate(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.Validation("Invalid request body")
	}
	return validation.Validate(out)
}
