package handlers

import (
	"unicode/utf8"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/services"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/tenant"
	"github.com/gofiber/fiber/v2"
)

type ContentHandler struct {
	contentService *services.ContentService
	accountService *services.AccountService
}

func NewContentHandler(contentService *services.ContentService, accountService *services.AccountService) *ContentHandler {
	return &ContentHandler{contentService: contentService, accountService: accountService}
}

func (h *ContentHandler) Register(c *fiber.Ctx) error {
	appID := tenant.GetAppID(c)
	userID, err := tenant.GetUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req dto.RegisterContentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Body == "" && req.MediaURL == "" {
		return badRequest(c, "body or media_url is required")
	}
	if msg := textProblem("media_url", req.MediaURL, maxMediaURLLen); msg != "" {
		return badRequest(c, msg)
	}
	if !utf8.ValidString(req.Body) {
		return badRequest(c, "body must be valid UTF-8")
	}

	email := ""
	if claims, err := tenant.Claims(c); err == nil {
		email, _ = claims["email"].(string)
	}
	if _, err := h.accountService.Ensure(c.UserContext(), appID, userID, email); err != nil {
		return serviceError(c, err, "Failed to load account")
	}

	content, err := h.contentService.Register(c.UserContext(), appID, services.ContentInput{
		OwnerID:  userID,
		Kind:     req.Kind,
		Body:     req.Body,
		MediaURL: req.MediaURL,
	})
	if err != nil {
		return serviceError(c, err, "Failed to register content")
	}
	return c.Status(fiber.StatusCreated).JSON(content)
}
