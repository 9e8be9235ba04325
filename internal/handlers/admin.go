package handlers

import (
	"strconv"

	apperrors "exchange/internal/errors"
	"exchange/internal/models"
	"exchange/internal/repositories"
	"exchange/internal/services/ban"
	"exchange/internal/services/order"
	"exchange/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	orders *order.Service
	bans   *ban.Service
}

func NewAdminHandler(orders *order.Service, bans *ban.Service) *AdminHandler {
	return &AdminHandler{orders: orders, bans: bans}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=processing successful failed"`
	TxHash string `json:"txHash" validate:"omitempty,max=128"`
}

type banRequest struct {
	IPAddress string `json:"ipAddress" validate:"required,ip"`
	Reason    string `json:"reason" validate:"omitempty,max=255"`
}

// UpdateOrderStatus returns the PATCH /api/admin/<kind>/:id handler.
func (h *AdminHandler) UpdateOrderStatus(kind models.OrderKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return utils.Error(c, apperrors.Validation("Invalid order id").With("fields", []string{"id"}))
		}

		var input updateStatusRequest
		if err := parseAndValidate(c, &input); err != nil {
			return utils.Error(c, err)
		}

		claims, err := utils.GetUserClaims(c)
		if err != nil {
			return utils.Error(c, err)
		}

		updated, err := h.orders.UpdateStatus(c.UserContext(), order.TransitionRequest{
			OrderID: uint(id),
			Kind:    kind,
			Status:  models.OrderStatus(input.Status),
			TxHash:  input.TxHash,
			Actor:   claims.Username,
		})
		if err != nil {
			return utils.Error(c, err)
		}
		return utils.Success(c, fiber.Map{"message": "Order status updated", "order": updated})
	}
}

// ListOrders handles GET /api/admin/orders?kind=&status=.
func (h *AdminHandler) ListOrders(c *fiber.Ctx) error {
	filter := repositories.OrderFilter{
		Kind:   models.OrderKind(c.Query("kind")),
		Status: models.OrderStatus(c.Query("status")),
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return utils.Error(c, apperrors.Validation("Invalid kind").With("fields", []string{"kind"}))
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return utils.Error(c, apperrors.Validation("Invalid status").With("fields", []string{"status"}))
	}

	p := utils.ParsePage(c, 50)
	orders, total, err := h.orders.List(c.UserContext(), filter, p.Offset(), p.Limit)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, utils.NewPaged(orders, p, total))
}

// ManualBan handles POST /api/admin/security/manual-ban.
func (h *AdminHandler) ManualBan(c *fiber.Ctx) error {
	var input banRequest
	if err := parseAndValidate(c, &input); err != nil {
		return utils.Error(c, err)
	}
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Error(c, err)
	}

	res, err := h.bans.ManualBan(c.UserContext(), input.IPAddress, claims.Username, input.Reason)
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{
		"message":   "IP address banned",
		"ipAddress": res.IPAddress,
		"offenses":  res.Offenses,
		"expiresAt": res.ExpiresAt,
	})
}

// Unban handles POST /api/admin/security/unban.
func (h *AdminHandler) Unban(c *fiber.Ctx) error {
	var input banRequest
	if err := parseAndValidate(c, &input); err != nil {
		return utils.Error(c, err)
	}
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Error(c, err)
	}

	existed, err := h.bans.Unban(c.UserContext(), input.IPAddress, claims.Username)
	if err != nil {
		return utils.Error(c, err)
	}
	if !existed {
		return utils.Error(c, apperrors.NotFound("IP address is not banned"))
	}
	return utils.Message(c, fiber.StatusOK, "IP address unbanned")
}

// ListBans handles GET /api/admin/security/bans.
func (h *AdminHandler) ListBans(c *fiber.Ctx) error {
	bans, err := h.bans.List(c.UserContext())
	if err != nil {
		return utils.Error(c, err)
	}
	return utils.Success(c, fiber.Map{"bans": bans})
}
