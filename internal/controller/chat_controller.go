package controller

import (
	"strconv"

	"neuroheart-chat-be/internal/dto"
	"neuroheart-chat-be/internal/pkg/serverutils"
	"neuroheart-chat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateConversation(ctx *fiber.Ctx) error
	GetAllConversations(ctx *fiber.Ctx) error
	ArchiveConversation(ctx *fiber.Ctx) error
	UnarchiveConversation(ctx *fiber.Ctx) error
	DeleteConversation(ctx *fiber.Ctx) error
	GetChatHistory(ctx *fiber.Ctx) error
	SendChat(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	rateLimiter *serverutils.RateLimiter
}

func NewChatController(chatService service.IChatService, rateLimiter *serverutils.RateLimiter) IChatController {
	return &chatController{
		chatService: chatService,
		rateLimiter: rateLimiter,
	}
}

// userIdFromLocals reads the user id the JWT middleware stored. A
// missing or malformed claim is treated as an auth failure, not a
// panic.
func userIdFromLocals(ctx *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := ctx.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid token claims")
	}
	userId, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid token claims")
	}
	return userId, nil
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("conversation", c.CreateConversation)
	h.Get("conversations", c.GetAllConversations)
	h.Patch("conversation/:id/archive", c.ArchiveConversation)
	h.Patch("conversation/:id/unarchive", c.UnarchiveConversation)
	h.Delete("conversation/:id", c.DeleteConversation)
	h.Get("conversation/:id/history", c.GetChatHistory)
	// Model calls are the expensive path; only send is rate limited.
	h.Post("send", c.rateLimiter.Middleware(), c.SendChat)
}

func (c *chatController) CreateConversation(ctx *fiber.Ctx) error {
	userId, err := userIdFromLocals(ctx)
	if err != nil {
		return err
	}

	// Title is optional; an empty body means an untitled conversation.
	var req dto.CreateConversationRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return err
		}
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.CreateConversation(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *chatController) GetAllConversations(ctx *fiber.Ctx) error {
	userId, err := userIdFromLocals(ctx)
	if err != nil {
		return err
	}

	includeArchived := ctx.QueryBool("include_archived", false)

	res, err := c.chatService.GetAllConversations(ctx.Context(), userId, includeArchived)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get conversations", res))
}

func (c *chatController) ArchiveConversation(ctx *fiber.Ctx) error {
	return c.setArchived(ctx, true, "Success archive conversation")
}

func (c *chatController) UnarchiveConversation(ctx *fiber.Ctx) error {
	return c.setArchived(ctx, false, "Success unarchive conversation")
}

func (c *chatController) setArchived(ctx *fiber.Ctx, archived bool, message string) error {
	userId, err := userIdFromLocals(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	if archived {
		err = c.chatService.ArchiveConversation(ctx.Context(), userId, id)
	} else {
		err = c.chatService.UnarchiveConversation(ctx.Context(), userId, id)
	}
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse(message, nil))
}

func (c *chatController) DeleteConversation(ctx *fiber.Ctx) error {
	userId, err := userIdFromLocals(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	if err := c.chatService.DeleteConversation(ctx.Context(), userId, id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete conversation", nil))
}

func (c *chatController) GetChatHistory(ctx *fiber.Ctx) error {
	userId, err := userIdFromLocals(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	page := dto.HistoryPage{
		Limit: ctx.QueryInt("limit", 0),
	}
	page.AfterSeq, _ = strconv.ParseInt(ctx.Query("after_seq", "0"), 10, 64)
	page.BeforeSeq, _ = strconv.ParseInt(ctx.Query("before_seq", "0"), 10, 64)

	res, err := c.chatService.GetChatHistory(ctx.Context(), userId, id, page)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get chat history", res))
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	userId, err := userIdFromLocals(ctx)
	if err != nil {
		return err
	}

	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendChat(ctx.Context(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}
