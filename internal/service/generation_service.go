package service

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/normalize"
	"github.com/xauti/content_go_server/internal/pkg/n8n"
	"github.com/xauti/content_go_server/internal/pkg/oss"
	"github.com/xauti/content_go_server/internal/pkg/pubsub"
	"github.com/xauti/content_go_server/internal/pkg/queue"
	"github.com/xauti/content_go_server/internal/repository"
)

const (
	maxTopics  = 10
	sweepBatch = 100
)

var (
	ErrRequestNotFound    = errors.New("content request not found")
	ErrInvalidGeneration  = errors.New("industry and between 1 and 10 topics are required")
	ErrNotReady           = errors.New("content is not ready yet")
	ErrDispatchFailed     = errors.New("failed to start content generation")
	ErrInvalidCallbackKey = errors.New("callback is missing the request id")
)

// Dispatcher hands a job to whatever runs it. *queue.Queue satisfies it.
type Dispatcher interface {
	Push(ctx context.Context, job *queue.JobMessage) error
}

// StatusPublisher announces status changes to connected dashboards.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg *pubsub.StatusMessage) error
}

// WorkflowClient triggers the n8n content workflow.
type WorkflowClient interface {
	Trigger(ctx context.Context, webhookURL string, payload *n8n.Payload) ([]byte, error)
}

// ArtifactStore mirrors finished CSVs. *oss.Client satisfies it.
type ArtifactStore interface {
	UploadCSV(objectKey string, data []byte) (string, error)
}

type generationInput struct {
	kind     string
	industry string
	topics   []string
	tone     string
	cta      string
}

type GenerationService struct {
	requestRepo   *repository.ContentRequestRepository
	quotaService  *QuotaService
	tenantService *TenantService
	workflow      WorkflowClient
	normalizer    *normalize.Normalizer
	publisher     StatusPublisher
	dispatcher    Dispatcher
	store         ArtifactStore
	cfg           *config.Config
	now           func() time.Time
}

func NewGenerationService(
	requestRepo *repository.ContentRequestRepository,
	quotaService *QuotaService,
	tenantService *TenantService,
	workflow WorkflowClient,
	normalizer *normalize.Normalizer,
	publisher StatusPublisher,
	cfg *config.Config,
) *GenerationService {
	return &GenerationService{
		requestRepo:   requestRepo,
		quotaService:  quotaService,
		tenantService: tenantService,
		workflow:      workflow,
		normalizer:    normalizer,
		publisher:     publisher,
		cfg:           cfg,
		now:           time.Now,
	}
}

// SetDispatcher wires the job runner. The inline runner needs the service
// itself, so it cannot be a constructor argument.
func (s *GenerationService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// SetArtifactStore enables the optional CSV mirror.
func (s *GenerationService) SetArtifactStore(store ArtifactStore) {
	s.store = store
}

// Generate starts a content calendar request and returns without waiting
// for the workflow.
func (s *GenerationService) Generate(ctx context.Context, userID int64, tenant *model.Tenant, req *dto.GenerateContentRequest) (*dto.GenerateResponse, error) {
	return s.start(ctx, userID, tenant, generationInput{
		kind:     model.KindCalendar,
		industry: req.Industry,
		topics:   req.SelectedTopics,
		tone:     req.BrandTone,
		cta:      req.CallToAction,
	})
}

func (s *GenerationService) start(ctx context.Context, userID int64, tenant *model.Tenant, in generationInput) (*dto.GenerateResponse, error) {
	in.industry = strings.TrimSpace(in.industry)
	in.topics = cleanTopics(in.topics)
	if in.industry == "" || len(in.topics) == 0 || len(in.topics) > maxTopics {
		return nil, ErrInvalidGeneration
	}
	if s.dispatcher == nil {
		return nil, ErrDispatchFailed
	}

	user, err := s.quotaService.getUser(userID)
	if err != nil {
		return nil, err
	}
	if user.GenerationsUsed >= user.TotalLimit() {
		return nil, ErrQuotaExceeded
	}

	req := &model.ContentRequest{
		RequestKey:     uuid.NewString(),
		UserID:         userID,
		TenantID:       tenantIDOf(tenant),
		Kind:           in.kind,
		Industry:       in.industry,
		SelectedTopics: model.StringArray(in.topics),
		BrandTone:      strings.TrimSpace(in.tone),
		CallToAction:   strings.TrimSpace(in.cta),
		Status:         model.StatusPending,
	}
	if err := s.requestRepo.Create(req); err != nil {
		return nil, err
	}

	// A concurrent request may have taken the last generation since the
	// check above.
	if err := s.quotaService.UseQuota(userID); err != nil {
		if _, ferr := s.requestRepo.Fail(req.ID, err.Error()); ferr != nil {
			log.WithError(ferr).WithField("request_id", req.ID).Error("failed to close request")
		}
		return nil, err
	}

	now := s.now()
	if err := s.quotaService.TouchStreak(user, now); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("failed to update content streak")
	}

	if err := s.requestRepo.MarkProcessing(req.ID, now); err != nil {
		return nil, err
	}
	req.Status = model.StatusProcessing

	// announced before the push so a fast inline job cannot report its
	// terminal status first
	s.publish(ctx, req, model.StatusProcessing, "")

	job := &queue.JobMessage{
		RequestID: req.ID,
		UserID:    userID,
		TenantID:  req.TenantID,
		Kind:      req.Kind,
	}
	if err := s.dispatcher.Push(ctx, job); err != nil {
		s.fail(ctx, req, "failed to start the content workflow")
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	log.WithFields(log.Fields{
		"request_id": req.ID,
		"user_id":    userID,
		"tenant_id":  req.TenantID,
		"kind":       req.Kind,
	}).Info("content generation dispatched")

	return &dto.GenerateResponse{
		RequestID:           req.ID,
		RequestKey:          req.RequestKey,
		Status:              model.StatusProcessing,
		PollIntervalSeconds: s.cfg.Generation.PollIntervalSeconds,
		MaxAttempts:         s.cfg.Generation.PollMaxAttempts,
	}, nil
}

// RunCalendar calls the n8n workflow for a dispatched calendar request and
// stores whatever it answers.
func (s *GenerationService) RunCalendar(ctx context.Context, requestID int64) error {
	req, err := s.requestRepo.GetByIDWithUser(requestID)
	if err != nil {
		return fmt.Errorf("load request %d: %w", requestID, err)
	}
	if req.IsTerminal() {
		return nil
	}
	if req.User == nil {
		s.fail(ctx, req, "user no longer exists")
		return nil
	}

	creds, err := s.tenantService.CredentialsByID(req.TenantID)
	if err != nil {
		log.WithError(err).WithField("request_id", req.ID).Error("failed to load tenant credentials")
		s.fail(ctx, req, "content workflow credentials are unavailable")
		return nil
	}
	if creds.N8NWebhookURL == "" {
		s.fail(ctx, req, "content workflow is not configured")
		return nil
	}

	payload := &n8n.Payload{
		RequestKey:     req.RequestKey,
		CallbackURL:    s.CallbackURL(req.RequestKey),
		Kind:           req.Kind,
		UserEmail:      req.User.Email,
		UserName:       req.User.Name,
		Tier:           req.User.SubscriptionTier,
		TenantID:       req.TenantID,
		Industry:       req.Industry,
		SelectedTopics: req.SelectedTopics,
		BrandTone:      req.BrandTone,
		CallToAction:   req.CallToAction,
		Timestamp:      s.now().UTC().Format(time.RFC3339),
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Generation.WorkflowTimeout())
	defer cancel()

	body, err := s.workflow.Trigger(callCtx, creds.N8NWebhookURL, payload)
	if err != nil {
		log.WithError(err).WithField("request_id", req.ID).Warn("content workflow call failed")
		s.fail(ctx, req, workflowErrorMessage(err))
		return nil
	}

	return s.applyResult(ctx, req, body)
}

// HandleCallback stores the asynchronous result n8n posts back. Requests
// that already finished are left untouched.
func (s *GenerationService) HandleCallback(ctx context.Context, requestKey string, body []byte) error {
	if requestKey == "" {
		requestKey = firstString(gjson.ParseBytes(body), "requestId", "request_id", "requestKey")
	}
	if requestKey == "" {
		return ErrInvalidCallbackKey
	}

	req, err := s.requestRepo.GetByKey(requestKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	if req.IsTerminal() {
		log.WithField("request_id", req.ID).Debug("callback for finished request ignored")
		return nil
	}

	parsed := gjson.ParseBytes(body)
	status := strings.ToLower(parsed.Get("status").String())
	if status == "failed" || status == "error" {
		msg := firstString(parsed, "error.message", "error", "message")
		if msg == "" {
			msg = "content workflow reported a failure"
		}
		s.fail(ctx, req, msg)
		return nil
	}

	return s.applyResult(ctx, req, body)
}

// VerifyCallbackSecret accepts anything when no secret is configured.
func (s *GenerationService) VerifyCallbackSecret(provided string) bool {
	secret := s.cfg.Generation.CallbackSecret
	if secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(provided)) == 1
}

// CallbackURL is where n8n posts results; empty without a public URL.
func (s *GenerationService) CallbackURL(requestKey string) string {
	base := strings.TrimRight(s.cfg.Server.PublicURL, "/")
	if base == "" {
		return ""
	}
	return base + s.cfg.Generation.CallbackPath + "?request_id=" + url.QueryEscape(requestKey)
}

func (s *GenerationService) applyResult(ctx context.Context, req *model.ContentRequest, body []byte) error {
	artifact, err := s.normalizer.Normalize(ctx, body, req.Industry)
	switch {
	case errors.Is(err, normalize.ErrPending):
		log.WithField("request_id", req.ID).Info("workflow accepted, waiting for callback")
		return nil
	case err != nil:
		log.WithError(err).WithField("request_id", req.ID).Warn("could not normalize workflow response")
		s.fail(ctx, req, "could not read the workflow response: "+err.Error())
		return nil
	}
	return s.complete(ctx, req, artifact, nil)
}

func (s *GenerationService) complete(ctx context.Context, req *model.ContentRequest, artifact *normalize.Artifact, extra map[string]interface{}) error {
	fields := map[string]interface{}{
		"csv_base64":    artifact.CSVBase64,
		"csv_filename":  artifact.Filename,
		"error_message": "",
		"completed_at":  s.now(),
	}
	for k, v := range extra {
		fields[k] = v
	}

	if s.store != nil {
		if data, err := artifact.CSV(); err == nil {
			key := oss.ObjectKey(req.TenantID, req.RequestKey, artifact.Filename)
			if u, err := s.store.UploadCSV(key, data); err != nil {
				log.WithError(err).WithField("request_id", req.ID).Warn("failed to mirror csv")
			} else {
				fields["csv_url"] = u
			}
		}
	}

	ok, err := s.requestRepo.Complete(req.ID, fields)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	log.WithFields(log.Fields{
		"request_id": req.ID,
		"filename":   artifact.Filename,
	}).Info("content request completed")
	s.publish(ctx, req, model.StatusCompleted, "")
	return nil
}

// fail closes an active request and refunds its generation. It reports
// false when the request had already finished.
func (s *GenerationService) fail(ctx context.Context, req *model.ContentRequest, message string) bool {
	ok, err := s.requestRepo.Fail(req.ID, message)
	if err != nil {
		log.WithError(err).WithField("request_id", req.ID).Error("failed to mark request failed")
		return false
	}
	if !ok {
		return false
	}

	if err := s.quotaService.RefundQuota(req.UserID); err != nil {
		log.WithError(err).WithField("user_id", req.UserID).Error("failed to refund generation")
	}

	log.WithFields(log.Fields{
		"request_id": req.ID,
		"reason":     message,
	}).Warn("content request failed")
	s.publish(ctx, req, model.StatusFailed, message)
	return true
}

func (s *GenerationService) publish(ctx context.Context, req *model.ContentRequest, status, errMsg string) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishStatus(ctx, &pubsub.StatusMessage{
		UserID:    req.UserID,
		RequestID: req.ID,
		Kind:      req.Kind,
		Status:    status,
		Error:     errMsg,
	})
	if err != nil {
		log.WithError(err).WithField("request_id", req.ID).Warn("failed to publish status")
	}
}

// GetStatus is the polling endpoint. Only the owner may read a request.
func (s *GenerationService) GetStatus(userID, requestID int64) (*dto.ContentStatusResponse, error) {
	req, err := s.getOwned(userID, requestID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ContentStatusResponse{
		RequestID:           req.ID,
		Kind:                req.Kind,
		Status:              req.Status,
		CSVFilename:         req.CSVFilename,
		CSVURL:              req.CSVURL,
		ErrorMessage:        req.ErrorMessage,
		PollIntervalSeconds: s.cfg.Generation.PollIntervalSeconds,
		MaxAttempts:         s.cfg.Generation.PollMaxAttempts,
	}

	start := req.CreatedAt
	if req.StartedAt != nil {
		start = *req.StartedAt
		resp.StartedAt = req.StartedAt.Format(time.RFC3339)
	}
	end := s.now()
	if req.CompletedAt != nil {
		end = *req.CompletedAt
		resp.CompletedAt = req.CompletedAt.Format(time.RFC3339)
	}
	if elapsed := int(end.Sub(start).Seconds()); elapsed > 0 {
		resp.ElapsedSeconds = elapsed
	}

	if req.Status == model.StatusCompleted {
		resp.CSVBase64 = req.CSVBase64
		if req.ScriptContent != "" {
			var scripts map[string]string
			if err := json.Unmarshal([]byte(req.ScriptContent), &scripts); err == nil {
				resp.Scripts = scripts
			}
		}
	}
	return resp, nil
}

// List returns a page of the user's requests, newest first.
func (s *GenerationService) List(userID int64, page, pageSize int, kind string) ([]*dto.ContentListItem, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	reqs, total, err := s.requestRepo.ListByUserID(userID, page, pageSize, kind)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.ContentListItem, 0, len(reqs))
	for _, r := range reqs {
		item := &dto.ContentListItem{
			ID:             r.ID,
			Kind:           r.Kind,
			Industry:       r.Industry,
			SelectedTopics: r.SelectedTopics,
			Status:         r.Status,
			CSVFilename:    r.CSVFilename,
			ErrorMessage:   r.ErrorMessage,
			CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		}
		if r.CompletedAt != nil {
			item.CompletedAt = r.CompletedAt.Format(time.RFC3339)
		}
		items = append(items, item)
	}
	return items, total, nil
}

// Download returns the decoded CSV of a completed request.
func (s *GenerationService) Download(userID, requestID int64) ([]byte, string, error) {
	req, err := s.getOwned(userID, requestID)
	if err != nil {
		return nil, "", err
	}
	if req.Status != model.StatusCompleted || req.CSVBase64 == "" {
		return nil, "", ErrNotReady
	}

	data, err := base64.StdEncoding.DecodeString(req.CSVBase64)
	if err != nil {
		return nil, "", fmt.Errorf("decode stored csv: %w", err)
	}
	return data, req.CSVFilename, nil
}

// SweepStale fails requests that outlived the client polling window and
// refunds them.
func (s *GenerationService) SweepStale(ctx context.Context) (int, error) {
	window := s.cfg.Generation.PollWindow()
	cutoff := s.now().Add(-window)

	reqs, err := s.requestRepo.ListStale(cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}

	msg := fmt.Sprintf("generation timed out after %d minutes", int(window.Minutes()))
	swept := 0
	for _, req := range reqs {
		if s.fail(ctx, req, msg) {
			swept++
		}
	}
	if swept > 0 {
		log.WithField("count", swept).Info("stale content requests failed")
	}
	return swept, nil
}

// CountStale reports how many requests SweepStale would close.
func (s *GenerationService) CountStale() (int, error) {
	reqs, err := s.requestRepo.ListStale(s.now().Add(-s.cfg.Generation.PollWindow()), sweepBatch)
	if err != nil {
		return 0, err
	}
	return len(reqs), nil
}

func (s *GenerationService) getOwned(userID, requestID int64) (*model.ContentRequest, error) {
	req, err := s.requestRepo.GetByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if req.UserID != userID {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

func workflowErrorMessage(err error) string {
	var statusErr *n8n.StatusError
	switch {
	case errors.Is(err, n8n.ErrNotConfigured):
		return "content workflow is not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return "content workflow timed out"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("content workflow returned status %d", statusErr.Code)
	default:
		return "content workflow is unreachable"
	}
}

func cleanTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstString(obj gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := obj.Get(p)
		if v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String())
		}
	}
	return ""
}

func tenantIDOf(tenant *model.Tenant) int64 {
	if tenant == nil {
		return 0
	}
	return tenant.ID
}
