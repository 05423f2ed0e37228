package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/trade-ledger/internal/api/domain"
	"github.com/cuongbtq/trade-ledger/internal/api/dto"
	"github.com/cuongbtq/trade-ledger/internal/api/model"
	"github.com/cuongbtq/trade-ledger/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var allowedExtensions = map[string]bool{
	".csv":  true,
	".xlsx": true,
}

func toImportJobDTO(job *model.ImportJob) dto.ImportJobDTO {
	out := dto.ImportJobDTO{
		JobID:            job.JobID,
		Status:           job.Status,
		Errors:           job.Errors,
		UploadedByUserID: job.UploadedByUserID,
		Attempts:         job.Attempts,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		out.CompletedAt = &completedAt
	}
	return out
}

// CreateImport handles POST /api/v1/imports
// Stores the uploaded order file, creates a NEW import job and queues it
func (h *ImportHandler) CreateImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file is required",
		})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedExtensions[ext] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": domain.ErrUnsupportedFile.Error() + ": expected .csv or .xlsx",
		})
		return
	}

	if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file is too large",
		})
		return
	}

	var uploadedBy *int64
	if raw := c.PostForm("uploaded_by_user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "uploaded_by_user_id must be an integer",
			})
			return
		}
		uploadedBy = &id
	}

	jobID := uuid.NewString()
	logger := h.logger.With(slog.String("job_id", jobID))

	src, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open upload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read uploaded file",
		})
		return
	}
	defer src.Close()

	fileName := jobID + ext
	size, err := h.files.Save(fileName, src)
	if err != nil {
		logger.Error("Failed to store upload", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store uploaded file",
		})
		return
	}

	now := time.Now().UTC()
	job := model.ImportJob{
		JobID:            jobID,
		FilePath:         fileName,
		Status:           domain.JobStatusNew,
		UploadedByUserID: uploadedBy,
		MaxAttempts:      h.maxAttempts,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.jobs.CreateImportJob(c.Request.Context(), &job); err != nil {
		logger.Error("Failed to create import job", slog.String("error", err.Error()))
		if rmErr := h.files.Remove(fileName); rmErr != nil {
			logger.Warn("Failed to remove orphaned upload", slog.String("error", rmErr.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create import job",
		})
		return
	}

	// the job row is committed before workers can see the message
	body, err := json.Marshal(dto.ImportJobMessage{JobID: jobID})
	if err == nil {
		err = h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json")
	}
	if err != nil {
		logger.Error("Failed to enqueue import job", slog.String("error", err.Error()))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "Import job created but could not be queued",
			"job_id": jobID,
		})
		return
	}

	logger.Info("Import job queued",
		slog.String("file", fileHeader.Filename),
		slog.Int64("size", size),
	)

	c.JSON(http.StatusAccepted, toImportJobDTO(&job))
}

// GetImport handles GET /api/v1/imports/:job_id
func (h *ImportHandler) GetImport(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.jobs.GetImportJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Import job not found",
			})
			return
		}
		h.logger.Error("Failed to get import job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get import job",
		})
		return
	}

	c.JSON(http.StatusOK, toImportJobDTO(job))
}

// ListImports handles GET /api/v1/imports
// Lists import jobs newest first with cursor pagination
func (h *ImportHandler) ListImports(c *gin.Context) {
	var req dto.ListImportJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Status != "" && !domain.ValidJobStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.jobs.ListImportJobs(c.Request.Context(), storage.JobFilter{
		UploadedByUserID: req.UserID,
		Status:           req.Status,
		PageSize:         req.PageSize,
		Cursor:           cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list import jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list import jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListImportJobsResponse{
		Jobs: make([]dto.ImportJobDTO, len(jobs)),
	}
	for i := range jobs {
		resp.Jobs[i] = toImportJobDTO(&jobs[i])
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, resp)
}
