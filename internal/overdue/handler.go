package overdue

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library-backend/internal/platform/apierr"
)

type Handler struct {
	runner Runner
	log    *zap.SugaredLogger
}

// RegisterRoutes は手動実行用のエンドポイント。
func RegisterRoutes(r gin.IRoutes, runner Runner, log *zap.SugaredLogger) {
	h := &Handler{runner: runner, log: log}
	r.POST("/overdue/scan", h.Scan)
}

func (h *Handler) Scan(c *gin.Context) {
	res, err := h.runner.RunOnce(c.Request.Context())
	if err != nil {
		apierr.Abort(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
