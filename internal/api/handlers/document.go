package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/api/middleware"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/domain"
	"github.com/vincentgggg12/docufen-admin-sub001/internal/services"
	"go.uber.org/zap"
)

// maxAttachmentBytes bounds a single multipart upload.
const maxAttachmentBytes = 32 << 20

type DocumentHandler struct {
	docService *services.DocumentService
	logger     *zap.Logger
}

func NewDocumentHandler(docService *services.DocumentService, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		logger:     logger.With(zap.String("handler", "document")),
	}
}

type documentResponse struct {
	*domain.Document
	Content string `json:"content"`
}

func present(d *domain.Document) documentResponse {
	return documentResponse{Document: d, Content: string(d.Content)}
}

type createDocumentRequest struct {
	Title string `json:"title"`
}

func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req createDocumentRequest
	if !bind(c, &req) {
		return
	}
	d, err := h.docService.CreateDocument(c.Request.Context(), actor, req.Title)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, present(d))
}

func (h *DocumentHandler) GetDocument(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	d, err := h.docService.GetDocument(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, present(d))
}

type updateContentRequest struct {
	Content string `json:"content"`
}

func (h *DocumentHandler) UpdateContent(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req updateContentRequest
	if !bind(c, &req) {
		return
	}
	d, err := h.docService.UpdateContent(c.Request.Context(), c.Param("id"), actor, []byte(req.Content))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, present(d))
}

// AddAttachment takes a multipart "file" part and an optional "pages"
// field used for metering.
func (h *DocumentHandler) AddAttachment(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "multipart field \"file\" is required")
		return
	}
	if fh.Size > maxAttachmentBytes {
		middleware.AbortJSON(c, http.StatusRequestEntityTooLarge, string(domain.KindInvalidArgument),
			"attachment exceeds "+strconv.Itoa(maxAttachmentBytes>>20)+" MiB")
		return
	}
	pages := 0
	if v := c.PostForm("pages"); v != "" {
		pages, err = strconv.Atoi(v)
		if err != nil || pages < 0 {
			badRequest(c, "pages must be a non-negative integer")
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable upload")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxAttachmentBytes))
	if err != nil {
		badRequest(c, "unreadable upload")
		return
	}

	_, att, err := h.docService.AddAttachment(c.Request.Context(), c.Param("id"), actor, services.AttachmentInput{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Data:      data,
		Pages:     pages,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

func (h *DocumentHandler) Capabilities(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	v, err := h.docService.Capabilities(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type transitionRequest struct {
	Target    string `json:"target"`
	Direction string `json:"direction"`
	Reason    string `json:"reason"`
}

func (h *DocumentHandler) RequestTransition(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req transitionRequest
	if !bind(c, &req) {
		return
	}
	target, valid := domain.ParseStage(req.Target)
	if !valid {
		badRequest(c, "unknown target stage "+req.Target)
		return
	}
	dir := domain.Forward
	if req.Direction != "" {
		if dir, valid = domain.ParseDirection(req.Direction); !valid {
			badRequest(c, "direction must be FORWARD or BACKWARD")
			return
		}
	}

	res, err := h.docService.RequestTransition(c.Request.Context(), c.Param("id"), actor, target, dir, req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	body := gin.H{
		"document":   present(res.Document),
		"transition": res.Transition,
	}
	if res.Finalization != nil {
		body["finalization"] = res.Finalization
		c.JSON(http.StatusAccepted, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

type reopenRequest struct {
	Confirm bool `json:"confirm"`
}

func (h *DocumentHandler) Reopen(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req reopenRequest
	if !bind(c, &req) {
		return
	}
	d, err := h.docService.Reopen(c.Request.Context(), c.Param("id"), actor, req.Confirm)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, present(d))
}

type voidRequest struct {
	Reason string `json:"reason"`
}

func (h *DocumentHandler) VoidDocument(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	var req voidRequest
	if !bind(c, &req) {
		return
	}
	d, err := h.docService.VoidDocument(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, present(d))
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	if err := h.docService.DeleteDocument(c.Request.Context(), c.Param("id"), actor); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DocumentHandler) CreateControlledCopy(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	d, err := h.docService.CreateControlledCopy(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, present(d))
}

func (h *DocumentHandler) FinalizationStatus(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	job, err := h.docService.FinalizationStatus(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *DocumentHandler) CancelFinalization(c *gin.Context) {
	actor, ok := principal(c)
	if !ok {
		return
	}
	job, err := h.docService.CancelFinalization(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
