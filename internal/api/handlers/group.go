package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/services"
	"go.uber.org/zap"
)

// GroupHandler serves membership and signing for one group of a document.
type GroupHandler struct {
	docService *services.DocumentService
	logger     *zap.Logger
}

func NewGroupHandler(docService *services.DocumentService, logger *zap.Logger) *GroupHandler {
	return &GroupHandler{
		docService: docService,
		logger:     logger.With(zap.String("handler", "group")),
	}
}

type addParticipantRequest struct {
	UserID string `json:"user_id"`
}

func (h *GroupHandler) AddParticipant(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	var req addParticipantRequest
	if !bind(c, &req) {
		return
	}
	if req.UserID == "" {
		badRequest(c, "user_id is required")
		return
	}
	d, err := h.docService.AddParticipant(c.Request.Context(), c.Param("id"), g, req.UserID, actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d.Group(g))
}

func (h *GroupHandler) RemoveParticipant(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	d, err := h.docService.RemoveParticipant(c.Request.Context(), c.Param("id"), g, c.Param("user"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d.Group(g))
}

type orderRequest struct {
	Enforced bool `json:"enforced"`
}

func (h *GroupHandler) SetOrderEnforced(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	var req orderRequest
	if !bind(c, &req) {
		return
	}
	d, err := h.docService.SetOrderEnforced(c.Request.Context(), c.Param("id"), g, req.Enforced, actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d.Group(g))
}

func (h *GroupHandler) NextSigner(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	p, found, err := h.docService.NextSigner(c.Request.Context(), c.Param("id"), g, actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	body := gin.H{"group": g, "next_signer": nil}
	if found {
		body["next_signer"] = p
	}
	c.JSON(http.StatusOK, body)
}

func (h *GroupHandler) EligibleSigners(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	eligible, err := h.docService.EligibleSigners(c.Request.Context(), c.Param("id"), g, actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if eligible == nil {
		eligible = []domain.Participant{}
	}
	c.JSON(http.StatusOK, gin.H{"group": g, "eligible": eligible})
}

type signRequest struct {
	Method   string `json:"method"`
	Notation string `json:"notation"`
}

func (h *GroupHandler) Sign(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	var req signRequest
	if !bind(c, &req) {
		return
	}
	d, err := h.docService.Sign(c.Request.Context(), c.Param("id"), g, actor, services.SignRequest{
		Method:   domain.VerificationMethod(req.Method),
		Notation: req.Notation,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	p, _ := d.Group(g).Member(actor.UserID)
	c.JSON(http.StatusCreated, p)
}

type revokeRequest struct {
	Reason string `json:"reason"`
}

func (h *GroupHandler) RevokeVerification(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	var req revokeRequest
	if !bind(c, &req) {
		return
	}
	d, err := h.docService.RevokeVerification(c.Request.Context(), c.Param("id"), g, c.Param("user"), actor, req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	p, _ := d.Group(g).Member(c.Param("user"))
	c.JSON(http.StatusOK, p)
}

func (h *GroupHandler) Reverify(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	g, ok := groupParam(c)
	if !ok {
		return
	}
	d, err := h.docService.Reverify(c.Request.Context(), c.Param("id"), g, c.Param("user"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	p, _ := d.Group(g).Member(c.Param("user"))
	c.JSON(http.StatusOK, p)
}
