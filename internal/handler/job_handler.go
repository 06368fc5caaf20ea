package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type JobService interface {
	Create(ctx context.Context, job *domain.NotificationJob) (*domain.NotificationJob, error)
	GetByID(ctx context.Context, id string) (*domain.NotificationJob, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.NotificationJob, int64, error)
	Attempts(ctx context.Context, jobID string) ([]domain.DeliveryAttempt, error)
}

type JobHandler struct {
	service JobService
}

func NewJobHandler(service JobService) (*JobHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("job service is required")
	}
	return &JobHandler{service: service}, nil
}

func RegisterJobRoutes(router fiber.Router, service JobService) error {
	h, err := NewJobHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/jobs", h.CreateJob)
	v1.Get("/jobs/:id", h.GetJob)
	v1.Get("/jobs/:id/attempts", h.GetJobAttempts)
	v1.Get("/jobs", h.ListJobs)

	return nil
}

type createJobRequest struct {
	Channel     string `json:"channel"`
	Recipient   string `json:"recipient"`
	SearchID    string `json:"searchId"`
	LotID       string `json:"lotId"`
	MaxAttempts *int   `json:"maxAttempts,omitempty"`
}

type jobResponse struct {
	ID                string     `json:"id"`
	CorrelationID     string     `json:"correlationId"`
	Channel           string     `json:"channel"`
	Recipient         string     `json:"recipient"`
	Status            string     `json:"status"`
	SearchID          string     `json:"searchId"`
	LotID             string     `json:"lotId"`
	ProviderMessageID *string    `json:"providerMessageId,omitempty"`
	Responded         bool       `json:"responded"`
	ResponseValue     *string    `json:"responseValue,omitempty"`
	RespondedAt       *time.Time `json:"respondedAt,omitempty"`
	AttemptCount      int        `json:"attemptCount"`
	MaxAttempts       int        `json:"maxAttempts"`
	FailureReason     *string    `json:"failureReason,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

type listJobsResponse struct {
	Data []jobResponse `json:"data"`
	Meta listMeta      `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type attemptResponse struct {
	ID            string    `json:"id"`
	AttemptNumber int       `json:"attemptNumber"`
	StatusCode    *int      `json:"statusCode,omitempty"`
	ResponseBody  *string   `json:"responseBody,omitempty"`
	Error         *string   `json:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (h *JobHandler) CreateJob(c *fiber.Ctx) error {
	var req createJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return toHTTPError(err)
	}

	job := domain.NotificationJob{
		Channel:   channel,
		Recipient: strings.TrimSpace(req.Recipient),
		SearchID:  strings.TrimSpace(req.SearchID),
		LotID:     strings.TrimSpace(req.LotID),
	}
	if req.MaxAttempts != nil {
		job.MaxAttempts = *req.MaxAttempts
	}

	created, err := h.service.Create(c.Context(), &job)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toJobResponse(created))
}

func (h *JobHandler) GetJob(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	job, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toJobResponse(job))
}

func (h *JobHandler) GetJobAttempts(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	attempts, err := h.service.Attempts(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, attemptResponse{
			ID:            attempt.ID,
			AttemptNumber: attempt.AttemptNumber,
			StatusCode:    attempt.StatusCode,
			ResponseBody:  attempt.ResponseBody,
			Error:         attempt.Error,
			CreatedAt:     attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": responses})
}

func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	jobs, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		responses = append(responses, toJobResponse(&jobs[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listJobsResponse{
		Data: responses,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &channel
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toJobResponse(j *domain.NotificationJob) jobResponse {
	if j == nil {
		return jobResponse{}
	}

	return jobResponse{
		ID:                j.ID,
		CorrelationID:     j.CorrelationID,
		Channel:           j.Channel.String(),
		Recipient:         j.Recipient,
		Status:            j.Status.String(),
		SearchID:          j.SearchID,
		LotID:             j.LotID,
		ProviderMessageID: j.ProviderMessageID,
		Responded:         j.Responded,
		ResponseValue:     j.ResponseValue,
		RespondedAt:       j.RespondedAt,
		AttemptCount:      j.AttemptCount,
		MaxAttempts:       j.MaxAttempts,
		FailureReason:     j.FailureReason,
		SentAt:            j.SentAt,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
