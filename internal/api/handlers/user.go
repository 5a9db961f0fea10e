package handlers

import (
	"context"
	"mime/multipart"
	"net/http"

	"chatkaro-service/internal/config"
	"chatkaro-service/internal/models"
	"chatkaro-service/internal/websocket"

	"github.com/gin-gonic/gin"
)

// UserService is the subset of services.UserService the handlers call.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest, avatar *multipart.FileHeader) (*models.User, string, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.User, string, error)
	Profile(ctx context.Context, userID uint) (*models.ProfileResponse, error)
	Search(ctx context.Context, userID uint, name string) ([]models.UserSummary, error)
	SendRequest(ctx context.Context, senderID, receiverID uint) error
	AcceptRequest(ctx context.Context, userID, requestID uint, accept bool) (uint, error)
	Notifications(ctx context.Context, userID uint) ([]models.NotificationResponse, error)
	Friends(ctx context.Context, userID uint, chatID *uint) ([]models.UserSummary, error)
}

// PresenceReader exposes the live presence snapshot.
type PresenceReader interface {
	OnlineUsers() []websocket.UserID
}

type UserHandler struct {
	users    UserService
	presence PresenceReader
	cookie   config.CookieConfig
}

func NewUserHandler(users UserService, presence PresenceReader, cookie config.CookieConfig) *UserHandler {
	return &UserHandler{users: users, presence: presence, cookie: cookie}
}

// Register godoc
// @Summary Register a new user
// @Description Create an account with an avatar image and start a session
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Display name"
// @Param username formData string true "Unique username"
// @Param password formData string true "Password"
// @Param bio formData string true "Bio"
// @Param avatar formData file true "Avatar image"
// @Success 201 {object} models.AuthResponse "User created"
// @Failure 400 {object} models.ErrorResponse "Bad request - invalid input data"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /users/new [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		writeBindError(c, err)
		return
	}
	avatar, _ := c.FormFile("avatar")

	user, token, err := h.users.Register(c.Request.Context(), &req, avatar)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setCookie(c, token, int(h.cookie.MaxAge.Seconds()))
	c.JSON(http.StatusCreated, models.AuthResponse{
		Success: true,
		Message: "User created",
		User:    user.Response(),
		Token:   token,
	})
}

// Login godoc
// @Summary User login
// @Description Authenticate with username and password
// @Tags users
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "User login credentials"
// @Success 200 {object} models.AuthResponse "Login successful"
// @Failure 400 {object} models.ErrorResponse "Bad request - invalid input data"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid credentials"
// @Router /users/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, token, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.setCookie(c, token, int(h.cookie.MaxAge.Seconds()))
	c.JSON(http.StatusOK, models.AuthResponse{
		Success: true,
		Message: "Welcome Back " + user.Name,
		User:    user.Response(),
		Token:   token,
	})
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Security CookieAuth
// @Success 200 {object} models.ProfileResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	profile, err := h.users.Profile(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Logout godoc
// @Summary Log out
// @Description Clear the session cookie
// @Tags users
// @Produce json
// @Security CookieAuth
// @Success 200 {object} models.SuccessResponse
// @Router /users/logout [get]
func (h *UserHandler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Logged Out successfully"})
}

// Search godoc
// @Summary Search users
// @Description Users matching name that are not already direct contacts
// @Tags users
// @Produce json
// @Security CookieAuth
// @Param name query string false "Name fragment"
// @Success 200 {object} map[string]interface{}
// @Router /users/search [get]
func (h *UserHandler) Search(c *gin.Context) {
	users, err := h.users.Search(c.Request.Context(), currentUserID(c), c.Query("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

// SendRequest godoc
// @Summary Send a friend request
// @Tags users
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body models.SendRequestRequest true "Receiver"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/sendrequest [put]
func (h *UserHandler) SendRequest(c *gin.Context) {
	var req models.SendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.users.SendRequest(c.Request.Context(), currentUserID(c), req.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Friend request sent"})
}

// AcceptRequest godoc
// @Summary Answer a friend request
// @Tags users
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body models.AcceptRequestRequest true "Answer"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/accept-request [put]
func (h *UserHandler) AcceptRequest(c *gin.Context) {
	var req models.AcceptRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	senderID, err := h.users.AcceptRequest(c.Request.Context(), currentUserID(c), req.RequestID, *req.Accept)
	if err != nil {
		writeError(c, err)
		return
	}

	if !*req.Accept {
		c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Request rejected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Friend request accepted", "senderId": senderID})
}

// Notifications godoc
// @Summary Pending friend requests
// @Tags users
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]interface{}
// @Router /users/notifications [get]
func (h *UserHandler) Notifications(c *gin.Context) {
	reqs, err := h.users.Notifications(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "allRequests": reqs})
}

// Friends godoc
// @Summary Direct contacts
// @Description With chatId, contacts already in that chat are left out
// @Tags users
// @Produce json
// @Security CookieAuth
// @Param chatId query int false "Chat to exclude members of"
// @Success 200 {object} map[string]interface{}
// @Router /users/friends [get]
func (h *UserHandler) Friends(c *gin.Context) {
	var chatID *uint
	if raw := c.Query("chatId"); raw != "" {
		id, err := uintParam(raw)
		if err != nil {
			writeError(c, err)
			return
		}
		chatID = &id
	}

	friends, err := h.users.Friends(c.Request.Context(), currentUserID(c), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "friends": friends})
}

// Online godoc
// @Summary Users marked online
// @Tags users
// @Produce json
// @Security CookieAuth
// @Success 200 {object} map[string]interface{}
// @Router /users/online [get]
func (h *UserHandler) Online(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "users": h.presence.OnlineUsers()})
}

func (h *UserHandler) setCookie(c *gin.Context, token string, maxAge int) {
	// Cross-site cookies need SameSite=None, which browsers only accept over TLS
	mode := http.SameSiteLaxMode
	if h.cookie.Secure {
		mode = http.SameSiteNoneMode
	}
	c.SetSameSite(mode)
	c.SetCookie(h.cookie.Name, token, maxAge, "/", "", h.cookie.Secure, true)
}
