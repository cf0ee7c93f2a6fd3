package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-backend/internal/platform/apierr"
	"library-backend/internal/platform/db"
)

type Handler struct {
	svc *Service
	log *zap.SugaredLogger
}

func RegisterRoutes(r gin.IRoutes, svc *Service, log *zap.SugaredLogger) {
	h := &Handler{svc: svc, log: log}

	r.POST("/books", h.CreateBook)
	r.GET("/books", h.SearchBooks) // ?title=&author=&isbn= 部分一致
	r.GET("/books/:id", h.GetBook)
	r.PUT("/books/:id", h.UpdateBook)
	r.DELETE("/books/:id", h.DeleteBook)
}

// ---------- handlers ----------

func (h *Handler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BindError(c, err)
		return
	}
	res, err := h.svc.CreateBook(c.Request.Context(), req)
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.Header("Location", "/api/books/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetBook(c *gin.Context) {
	res, err := h.svc.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SearchBooks(c *gin.Context) {
	f := BookFilter{
		Title:  c.Query("title"),
		Author: c.Query("author"),
		ISBN:   c.Query("isbn"),
	}
	res, err := h.svc.SearchBooks(c.Request.Context(), f, db.ParsePage(c.Query("limit"), c.Query("offset"), c.Query("order")))
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UpdateBook(c *gin.Context) {
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BindError(c, err)
		return
	}
	res, err := h.svc.UpdateBook(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteBook(c *gin.Context) {
	if err := h.svc.DeleteBook(c.Request.Context(), c.Param("id")); err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
