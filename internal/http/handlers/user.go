package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/remidosol/express-library-api/internal/domain/catalog"
	lendingdomain "github.com/remidosol/express-library-api/internal/domain/lending"
)

type UserService interface {
	ListUsers(ctx context.Context) ([]catalogdomain.User, error)
	CreateUser(ctx context.Context, name string) (*catalogdomain.User, error)
}

type LendingService interface {
	Borrow(ctx context.Context, userID, bookID int64) (*lendingdomain.Record, error)
	Return(ctx context.Context, userID, bookID int64, score int32) (*lendingdomain.ReturnResult, error)
	GetUserWithHistory(ctx context.Context, userID int64) (*lendingdomain.UserHistory, error)
}

type UserHandler struct {
	userService    UserService
	lendingService LendingService
}

func NewUserHandler(userService UserService, lendingService LendingService) *UserHandler {
	return &UserHandler{userService: userService, lendingService: lendingService}
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	items, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}
	item, err := h.lendingService.GetUserWithHistory(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	item, err := h.userService.CreateUser(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *UserHandler) BorrowBook(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}
	bookID, err := pathID(c, "bookId")
	if err != nil {
		respondError(c, err)
		return
	}
	record, err := h.lendingService.Borrow(c.Request.Context(), userID, bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *UserHandler) ReturnBook(c *gin.Context) {
	userID, err := pathID(c, "userId")
	if err != nil {
		respondError(c, err)
		return
	}
	bookID, err := pathID(c, "bookId")
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		Score int32 `json:"score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	result, err := h.lendingService.Return(c.Request.Context(), userID, bookID, req.Score)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record":            result.Record,
		"book_score":        result.BookScore,
		"cache_invalidated": result.CacheWarning == nil,
	})
}
