package access

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gymgate/pkg/errutil"
	"gymgate/pkg/security"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.RouterGroup) {
	r.POST("/access/scan", h.scan)
	r.GET("/members/:id/access", h.list)
	r.GET("/members/:id/access/stats", h.stats)
}

type scanRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// scan answers 200 for every decided outcome, admitted or not; the gate
// device branches on the outcome field. Non-2xx means the decision itself
// failed.
func (h *Handler) scan(c *gin.Context) {
	if hash := h.svc.gateKeyHash(); hash != "" {
		ok, err := security.VerifyArgon2(c.GetHeader("X-Gate-Key"), hash)
		if err != nil || !ok {
			c.Error(errutil.Unauthorized("invalid gate key"))
			return
		}
	}

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	result, err := h.svc.Scan(c.Request.Context(), req.Credential)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) list(c *gin.Context) {
	var req ListEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(errutil.BadRequest("invalid query parameters", errutil.WithErr(err)))
		return
	}

	entries, pageInfo, err := h.svc.ListEntries(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":   entries,
		"page_info": pageInfo,
	})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context(), c.Param("id"), h.svc.clk.Now())
	if err != nil {
		c.Error(errutil.Internal("failed to compute stats", errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, stats)
}
