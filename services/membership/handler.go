package membership

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"gymgate/pkg/errutil"
	"gymgate/pkg/task"
	"gymgate/pkg/taskname"
)

type Handler struct {
	svc      *Service
	enqueuer task.Enqueuer
}

func NewHandler(svc *Service, enqueuer task.Enqueuer) *Handler {
	return &Handler{svc: svc, enqueuer: enqueuer}
}

func (h *Handler) Register(r *gin.RouterGroup) {
	r.POST("/memberships", h.create)
	r.POST("/memberships/renew", h.renew)
	r.POST("/memberships/:id/cancel", h.cancel)
	r.POST("/memberships/sweep", h.sweep)
	r.GET("/members/:id/membership", h.active)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	m, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *Handler) renew(c *gin.Context) {
	var req RenewMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	m, err := h.svc.ResolveRenewal(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, m)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancel(c *gin.Context) {
	// Body is optional; cancelling without a reason is allowed.
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	m, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// sweep queues an immediate finalize pass instead of waiting for the
// nightly schedule. Handy after bulk imports or a config change.
func (h *Handler) sweep(c *gin.Context) {
	info, err := h.enqueuer.Enqueue(
		asynq.NewTask(taskname.MembershipFinalizeSweep, nil),
		asynq.Queue("low"),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"task_id": info.ID, "queue": info.Queue})
}

func (h *Handler) active(c *gin.Context) {
	m, err := h.svc.ActiveMembership(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, m)
}
