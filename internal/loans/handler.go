package loans

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

	// 貸出
	r.POST("/loans", h.CreateLoan)
	r.GET("/loans", h.FindLoans) // ?isbn=&customer= はOR条件
	r.GET("/loans/:id", h.GetLoan)

	// 返却（returned=false で取り消し）
	r.PATCH("/loans/:id", h.ReturnLoan)

	// 本ごとの貸出履歴
	r.GET("/books/:id/loans", h.LoansByBook)
}

// ---------- handlers ----------

func (h *Handler) CreateLoan(c *gin.Context) {
	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BindError(c, err)
		return
	}
	id, err := h.svc.CreateLoan(c.Request.Context(), req)
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.Header("Location", "/api/loans/"+id)
	c.JSON(http.StatusCreated, CreateLoanResponse{ID: id})
}

func (h *Handler) GetLoan(c *gin.Context) {
	res, err := h.svc.GetLoan(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) FindLoans(c *gin.Context) {
	f := LoanFilter{
		ISBN:     c.Query("isbn"),
		Customer: c.Query("customer"),
	}
	res, err := h.svc.FindLoans(c.Request.Context(), f, db.ParsePage(c.Query("limit"), c.Query("offset"), c.Query("order")))
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ReturnLoan(c *gin.Context) {
	var req ReturnLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BindError(c, err)
		return
	}
	res, err := h.svc.ReturnLoan(c.Request.Context(), c.Param("id"), *req.Returned)
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) LoansByBook(c *gin.Context) {
	res, err := h.svc.LoansByBook(c.Request.Context(), c.Param("id"), db.ParsePage(c.Query("limit"), c.Query("offset"), c.Query("order")))
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
