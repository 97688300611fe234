package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	catalogdomain "github.com/remidosol/express-library-api/internal/domain/catalog"
	"github.com/remidosol/express-library-api/internal/domain/fault"
)

type BookService interface {
	GetBook(ctx context.Context, bookID int64) (*catalogdomain.Book, error)
	ListBooks(ctx context.Context) ([]catalogdomain.Book, error)
	CreateBook(ctx context.Context, name string) (*catalogdomain.Book, error)
}

type BookHandler struct {
	bookService BookService
}

func NewBookHandler(bookService BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

func (h *BookHandler) ListBooks(c *gin.Context) {
	items, err := h.bookService.ListBooks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, err := pathID(c, "bookId")
	if err != nil {
		respondError(c, err)
		return
	}
	item, err := h.bookService.GetBook(c.Request.Context(), bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *BookHandler) CreateBook(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	item, err := h.bookService.CreateBook(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func pathID(c *gin.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fault.Invalid("invalid " + name)
	}
	return id, nil
}
