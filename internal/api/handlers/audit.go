package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/audit"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/services"
	"go.uber.org/zap"
)

type AuditHandler struct {
	docService *services.DocumentService
	logger     *zap.Logger
}

func NewAuditHandler(docService *services.DocumentService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		docService: docService,
		logger:     logger.With(zap.String("handler", "audit")),
	}
}

// parseQuery reads ?action=&actor=&since=&until=&after=&limit=. Actions may
// repeat or be comma separated; times are RFC 3339.
func parseQuery(c *gin.Context) (audit.Filter, audit.Page, bool) {
	var f audit.Filter
	for _, v := range c.QueryArray("action") {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				f.Actions = append(f.Actions, a)
			}
		}
	}
	f.ActorID = c.Query("actor")

	for name, dst := range map[string]**time.Time{"since": &f.Since, "until": &f.Until} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, name+" must be an RFC 3339 timestamp")
			return f, audit.Page{}, false
		}
		*dst = &t
	}

	var p audit.Page
	if v := c.Query("after"); v != "" {
		after, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			badRequest(c, "after must be a sequence number")
			return f, p, false
		}
		p.After = after
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return f, p, false
		}
		p.Limit = limit
	}
	return f, p, true
}

func (h *AuditHandler) AuditTrail(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	f, p, ok := parseQuery(c)
	if !ok {
		return
	}
	res, err := h.docService.AuditTrail(c.Request.Context(), c.Param("id"), actor, f, p)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if res.Entries == nil {
		res.Entries = []audit.Entry{}
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuditHandler) VerifyLedger(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	v, err := h.docService.VerifyLedger(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
