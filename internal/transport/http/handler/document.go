package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docrelay/internal/app"
	"docrelay/internal/model"
	"docrelay/internal/transport/http/response"
)

const headerCache = "X-Cache"

type DocumentHandler struct {
	qaService  *app.QAService
	jobService *app.JobService
}

type ProcessDocumentRequest struct {
	Question        string   `json:"question"`
	FileURL         string   `json:"file_url"`
	DocumentType    string   `json:"document_type"`
	PreviousContext []string `json:"previous_context"`
}

type LargeDocumentRequest struct {
	DocumentID string `json:"document_id"`
	FileURL    string `json:"file_url"`
	Async      bool   `json:"async"`
}

type SummarizeRequest struct {
	FileURL string `json:"file_url"`
}

type QuestionHistoryResponse struct {
	Success    bool                     `json:"success"`
	DocumentID string                   `json:"document_id"`
	Questions  []model.DocumentQuestion `json:"questions"`
}

type JobAcceptedResponse struct {
	Success    bool   `json:"success"`
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

func NewDocumentHandler(qaService *app.QAService, jobService *app.JobService) *DocumentHandler {
	return &DocumentHandler{qaService: qaService, jobService: jobService}
}

// Process answers one question about a document. Extraction and inference
// failures are reported with success=false and HTTP 200.
func (h *DocumentHandler) Process(c *gin.Context) {
	var req ProcessDocumentRequest
	if !bindJSON(c, &req) {
		return
	}

	answer, hit, err := h.qaService.Process(c.Request.Context(), app.ProcessInput{
		DocumentID:      c.Param("id"),
		Question:        req.Question,
		FileURL:         req.FileURL,
		DocumentType:    req.DocumentType,
		PreviousContext: req.PreviousContext,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if hit {
		c.Header(headerCache, "HIT")
	} else {
		c.Header(headerCache, "MISS")
	}
	response.OK(c, answer)
}

func (h *DocumentHandler) Questions(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	questions, err := h.qaService.History(c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if questions == nil {
		questions = []model.DocumentQuestion{}
	}

	response.OK(c, QuestionHistoryResponse{
		Success:    true,
		DocumentID: c.Param("id"),
		Questions:  questions,
	})
}

// ProcessLarge extracts a document inline, or queues it when async is set.
func (h *DocumentHandler) ProcessLarge(c *gin.Context) {
	var req LargeDocumentRequest
	if !bindJSON(c, &req) {
		return
	}

	if req.Async {
		job, err := h.jobService.Submit(c.Request.Context(), req.DocumentID, req.FileURL)
		if err != nil {
			writeError(c, err)
			return
		}
		response.Accepted(c, JobAcceptedResponse{
			Success:    true,
			JobID:      job.ID,
			DocumentID: job.DocumentID,
			Status:     job.Status,
		})
		return
	}

	result, err := h.qaService.ExtractLarge(c.Request.Context(), req.DocumentID, req.FileURL)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *DocumentHandler) JobStatus(c *gin.Context) {
	job, err := h.jobService.Get(c.Param("job_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"success": true,
		"job":     job,
	})
}

func (h *DocumentHandler) Summarize(c *gin.Context) {
	var req SummarizeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.qaService.Summarize(c.Request.Context(), req.FileURL)
	if err != nil {
		writeError(c, err)
		return
	}
	response.OK(c, result)
}
