package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
	"github.com/xauti/content_go_server/internal/model/dto"
	"github.com/xauti/content_go_server/internal/normalize"
)

var ErrScriptsNotAllowed = errors.New("scripts are available on the Pro and Unlimited plans")

const scriptSystemPrompt = "You write short, natural-sounding text-to-speech scripts for social media videos. " +
	"Answer with the script text only, no headings, no stage directions, no emojis."

// ScriptWriter completes one prompt. *llm.Client satisfies it.
type ScriptWriter interface {
	Complete(ctx context.Context, apiKey, system, prompt string) (string, error)
}

type ScriptService struct {
	generation    *GenerationService
	quotaService  *QuotaService
	tenantService *TenantService
	writer        ScriptWriter
	cfg           *config.Config
}

func NewScriptService(
	generation *GenerationService,
	quotaService *QuotaService,
	tenantService *TenantService,
	writer ScriptWriter,
	cfg *config.Config,
) *ScriptService {
	return &ScriptService{
		generation:    generation,
		quotaService:  quotaService,
		tenantService: tenantService,
		writer:        writer,
		cfg:           cfg,
	}
}

// Generate starts a 30-day script request for Pro and Unlimited users.
func (s *ScriptService) Generate(ctx context.Context, userID int64, tenant *model.Tenant, req *dto.GenerateScriptsRequest) (*dto.GenerateResponse, error) {
	user, err := s.quotaService.getUser(userID)
	if err != nil {
		return nil, err
	}
	if !Tier(user.SubscriptionTier).AllowsScripts() {
		return nil, ErrScriptsNotAllowed
	}

	return s.generation.start(ctx, userID, tenant, generationInput{
		kind:     model.KindScripts,
		industry: req.Industry,
		topics:   req.SelectedTopics,
		tone:     req.BrandTone,
		cta:      req.CallToAction,
	})
}

// Run writes one script per day with bounded concurrency. Days that fail
// get a placeholder; the request fails only when every day failed.
func (s *ScriptService) Run(ctx context.Context, requestID int64) error {
	gen := s.generation
	req, err := gen.requestRepo.GetByID(requestID)
	if err != nil {
		return fmt.Errorf("load request %d: %w", requestID, err)
	}
	if req.IsTerminal() {
		return nil
	}

	creds, err := s.tenantService.CredentialsByID(req.TenantID)
	if err != nil {
		log.WithError(err).WithField("request_id", req.ID).Error("failed to load tenant credentials")
		gen.fail(ctx, req, "script generation credentials are unavailable")
		return nil
	}
	if creds.OpenAIKey == "" {
		gen.fail(ctx, req, "script generation is not configured")
		return nil
	}
	topics := []string(req.SelectedTopics)
	if len(topics) == 0 {
		gen.fail(ctx, req, "no topics selected")
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Generation.WorkflowTimeout())
	defer cancel()

	days := s.cfg.Generation.ScriptDays
	scripts := make([]string, days)
	var failed atomic.Int32

	var g errgroup.Group
	g.SetLimit(s.cfg.Generation.ScriptConcurrency)
	for i := 0; i < days; i++ {
		day := i + 1
		topic := topics[i%len(topics)]
		g.Go(func() error {
			text, err := s.writer.Complete(runCtx, creds.OpenAIKey, scriptSystemPrompt, scriptPrompt(req, day, topic))
			if err != nil {
				failed.Add(1)
				log.WithError(err).WithFields(log.Fields{
					"request_id": req.ID,
					"day":        day,
				}).Warn("script generation failed")
				scripts[day-1] = placeholderScript(day, topic)
				return nil
			}
			scripts[day-1] = text
			return nil
		})
	}
	_ = g.Wait()

	if int(failed.Load()) == days {
		gen.fail(ctx, req, "script generation failed for every day")
		return nil
	}

	records := make([][]string, 0, days+1)
	records = append(records, []string{"Day", "Topic", "Script"})
	content := make(map[string]string, days)
	for i, text := range scripts {
		day := i + 1
		records = append(records, []string{fmt.Sprintf("%d", day), topics[i%len(topics)], text})
		content[fmt.Sprintf("day_%d", day)] = text
	}

	encoded, err := normalize.EncodeCSV(records)
	if err != nil {
		gen.fail(ctx, req, "could not build the scripts file")
		return nil
	}
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return err
	}

	artifact := &normalize.Artifact{
		CSVBase64: encoded,
		Filename:  scriptsFilename(req.Industry, gen.now()),
	}
	if n := failed.Load(); n > 0 {
		log.WithFields(log.Fields{"request_id": req.ID, "failed_days": n}).Warn("scripts completed with placeholders")
	}
	return gen.complete(ctx, req, artifact, map[string]interface{}{
		"script_content": string(contentJSON),
	})
}

func scriptPrompt(req *model.ContentRequest, day int, topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the day %d script of a 30-day video series for a business in the %s industry.\n", day, req.Industry)
	fmt.Fprintf(&b, "Topic: %s.\n", topic)
	if req.BrandTone != "" {
		fmt.Fprintf(&b, "Brand tone: %s.\n", req.BrandTone)
	}
	if req.CallToAction != "" {
		fmt.Fprintf(&b, "End with this call to action: %s.\n", req.CallToAction)
	}
	b.WriteString("Keep it between 60 and 120 words so it reads in under a minute.")
	return b.String()
}

func placeholderScript(day int, topic string) string {
	return fmt.Sprintf("Script for day %d (%s) could not be generated. Regenerate to try again.", day, topic)
}

func scriptsFilename(industry string, at time.Time) string {
	name := normalize.DefaultFilename(industry, at)
	return strings.Replace(name, "content-calendar-", "tts-scripts-", 1)
}
