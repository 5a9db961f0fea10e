package handlers

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"chatkaro-service/internal/models"

	"github.com/gin-gonic/gin"
)

// ChatService is the subset of services.ChatService the handlers call.
type ChatService interface {
	NewGroup(ctx context.Context, creatorID uint, req *models.NewGroupRequest) (*models.Chat, error)
	MyChats(ctx context.Context, userID uint) ([]models.ChatListItem, error)
	MyGroups(ctx context.Context, userID uint) ([]models.GroupListItem, error)
	AddMembers(ctx context.Context, userID uint, req *models.AddMembersRequest) error
	RemoveMember(ctx context.Context, userID uint, req *models.RemoveMemberRequest) error
	Leave(ctx context.Context, userID, chatID uint) error
	SendAttachments(ctx context.Context, userID, chatID uint, files []*multipart.FileHeader) (*models.MessageResponse, error)
	Details(ctx context.Context, chatID uint, populate bool) (any, error)
	Rename(ctx context.Context, userID, chatID uint, name string) error
	Delete(ctx context.Context, userID, chatID uint) error
	Messages(ctx context.Context, userID, chatID uint, page int) (*models.MessagesPageResponse, error)
}

type ChatHandler struct {
	chats ChatService
}

func NewChatHandler(chats ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// NewGroup godoc
// @Summary Create a group chat
// @Tags chat
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body models.NewGroupRequest true "Group name and other members"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /chat/new [post]
func (h *ChatHandler) NewGroup(c *gin.Context) {
	var req models.NewGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if _, err := h.chats.NewGroup(c.Request.Context(), currentUserID(c), &req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.SuccessResponse{Success: true, Message: "Group created successfully"})
}

// MyChats godoc
// @Summary Chats of the current user
// @Tags chat
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]interface{}
// @Router /chat/my [get]
func (h *ChatHandler) MyChats(c *gin.Context) {
	chats, err := h.chats.MyChats(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chats": chats})
}

// MyGroups godoc
// @Summary Groups created by the current user
// @Tags chat
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]interface{}
// @Router /chat/my/groups [get]
func (h *ChatHandler) MyGroups(c *gin.Context) {
	groups, err := h.chats.MyGroups(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "groups": groups})
}

// AddMembers godoc
// @Summary Add members to a group
// @Tags chat
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body models.AddMembersRequest true "Chat and new members"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/addmembers [put]
func (h *ChatHandler) AddMembers(c *gin.Context) {
	var req models.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.chats.AddMembers(c.Request.Context(), currentUserID(c), &req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Members added successfully"})
}

// RemoveMember godoc
// @Summary Remove a member from a group
// @Tags chat
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body models.RemoveMemberRequest true "Chat and member"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/removemember [put]
func (h *ChatHandler) RemoveMember(c *gin.Context) {
	var req models.RemoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.chats.RemoveMember(c.Request.Context(), currentUserID(c), &req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Member removed successfully"})
}

// Leave godoc
// @Summary Leave a group
// @Tags chat
// @Produce json
// @Security CookieAuth
// @Param id path int true "Chat ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /chat/leave/{id} [delete]
func (h *ChatHandler) Leave(c *gin.Context) {
	chatID, err := uintParam(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.chats.Leave(c.Request.Context(), currentUserID(c), chatID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Left Group successfully"})
}

// SendAttachments godoc
// @Summary Send attachments to a chat
// @Tags chat
// @Accept multipart/form-data
// @Produce json
// @Security CookieAuth
// @Param chatId formData int true "Chat ID"
// @Param files formData file true "One to five files"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Router /chat/message [post]
func (h *ChatHandler) SendAttachments(c *gin.Context) {
	chatID, err := uintParam(c.PostForm("chatId"))
	if err != nil {
		writeError(c, err)
		return
	}

	var files []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		files = form.File["files"]
	}

	msg, err := h.chats.SendAttachments(c.Request.Context(), currentUserID(c), chatID, files)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// Messages godoc
// @Summary Messages of a chat
// @Description Twenty per page in chronological order
// @Tags chat
// @Produce json
// @Security CookieAuth
// @Param id path int true "Chat ID"
// @Param page query int false "Page number"
// @Success 200 {object} models.MessagesPageResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/message/{id} [get]
func (h *ChatHandler) Messages(c *gin.Context) {
	chatID, err := uintParam(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	resp, err := h.chats.Messages(c.Request.Context(), currentUserID(c), chatID, page)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Details godoc
// @Summary Chat details
// @Tags chat
// @Produce json
// @Security CookieAuth
// @Param id path int true "Chat ID"
// @Param populate query bool false "Expand members"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Router /chat/{id} [get]
func (h *ChatHandler) Details(c *gin.Context) {
	chatID, err := uintParam(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	chat, err := h.chats.Details(c.Request.Context(), chatID, c.Query("populate") == "true")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "chat": chat})
}

// Rename godoc
// @Summary Rename a group
// @Tags chat
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param id path int true "Chat ID"
// @Param request body models.RenameGroupRequest true "New name"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/{id} [put]
func (h *ChatHandler) Rename(c *gin.Context) {
	chatID, err := uintParam(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	var req models.RenameGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.chats.Rename(c.Request.Context(), currentUserID(c), chatID, req.Name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Group name changed"})
}

// Delete godoc
// @Summary Delete a chat
// @Description Removes the chat, its messages and their attachments
// @Tags chat
// @Produce json
// @Security CookieAuth
// @Param id path int true "Chat ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /chat/{id} [delete]
func (h *ChatHandler) Delete(c *gin.Context) {
	chatID, err := uintParam(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.chats.Delete(c.Request.Context(), currentUserID(c), chatID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Chat deleted successful"})
}
