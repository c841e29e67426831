package member

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gymgate/pkg/errutil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r *gin.RouterGroup) {
	r.POST("/members", h.register)
	r.GET("/members/:id", h.get)
	r.POST("/members/:id/qr/reissue", h.reissueQR)
}

type memberResponse struct {
	*Member
	Credential string `json:"credential,omitempty"`
}

func (h *Handler) register(c *gin.Context) {
	var req RegisterMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	member, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	// The encoded credential is returned once at registration so the front
	// desk can print the card; it is not readable back later.
	cred, err := h.svc.CredentialFor(member)
	if err != nil {
		c.Error(errutil.Internal("failed to encode credential", errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusCreated, memberResponse{Member: member, Credential: cred})
}

func (h *Handler) get(c *gin.Context) {
	member, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, member)
}

func (h *Handler) reissueQR(c *gin.Context) {
	member, err := h.svc.ReissueQRToken(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	cred, err := h.svc.CredentialFor(member)
	if err != nil {
		c.Error(errutil.Internal("failed to encode credential", errutil.WithErr(err)))
		return
	}

	c.JSON(http.StatusOK, memberResponse{Member: member, Credential: cred})
}
