package analysis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/report-assistant/internal/audio"
	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
	"github.com/jwalitptl/report-assistant/internal/service/event"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/logger"
	"github.com/jwalitptl/report-assistant/pkg/metrics"
	"github.com/jwalitptl/report-assistant/pkg/validator"
)

// TextService generates the English analysis and the Urdu speech script.
type TextService interface {
	GenerateEnglishAnalysis(ctx context.Context, req model.AnalysisRequest) (string, error)
	GenerateUrduScript(ctx context.Context, req model.AnalysisRequest) (string, error)
}

// SpeechService turns a script into playable audio.
type SpeechService interface {
	SynthesizeSpeech(ctx context.Context, text string) (*model.Audio, error)
}

// AudioStore owns synthesized audio for its display lifetime.
type AudioStore interface {
	Put(ownerID, sessionID uuid.UUID, a *model.Audio) *audio.Clip
	ReleaseOwner(ownerID uuid.UUID)
}

// SessionContext is the caller's active session, passed explicitly to every
// orchestration call.
type SessionContext struct {
	OwnerID uuid.UUID
	Session *model.Session
}

type Config struct {
	DailyLimit     int
	StepTimeout    time.Duration
	AudioURLPrefix string
}

type Service struct {
	sessions  repository.SessionRepository
	usage     repository.UsageRepository
	text      TextService
	speech    SpeechService
	audio     AudioStore
	events    event.Emitter
	tracker   *Tracker
	validator validator.Validator
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       Config
	now       func() time.Time
}

func NewService(
	sessions repository.SessionRepository,
	usage repository.UsageRepository,
	text TextService,
	speech SpeechService,
	audioStore AudioStore,
	events event.Emitter,
	tracker *Tracker,
	m *metrics.Metrics,
	log *logger.Logger,
	cfg Config,
) *Service {
	return &Service{
		sessions:  sessions,
		usage:     usage,
		text:      text,
		speech:    speech,
		audio:     audioStore,
		events:    events,
		tracker:   tracker,
		validator: validator.New(),
		metrics:   m,
		logger:    log,
		cfg:       cfg,
		now:       time.Now,
	}
}

// State reports the session's state as the UI should show it. Failed runs
// return to AwaitingPatientInfo while a report is still selected.
func (s *Service) State(sessionID uuid.UUID, hasReport bool) model.AnalysisState {
	switch st := s.tracker.State(sessionID); st {
	case model.StateAnalyzing, model.StateCompleted:
		return st
	default:
		if hasReport {
			return model.StateAwaitingPatientInfo
		}
		return model.StateIdle
	}
}

// Usage returns the owner's analysis count for today.
func (s *Service) Usage(ctx context.Context, ownerID uuid.UUID) (*model.Usage, error) {
	used, err := s.usage.Get(ctx, ownerID, s.now())
	if err != nil {
		return nil, errors.ExternalService("usage store", err)
	}
	remaining := s.cfg.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return &model.Usage{Used: used, Limit: s.cfg.DailyLimit, Remaining: remaining}, nil
}

// Analyze runs the report pipeline for one session. The user message is
// persisted first; the English analysis and the Urdu script then run
// concurrently, and speech synthesis follows a successful script. A failing
// step is logged and reported as a notice without stopping the others.
// Once the pipeline starts it runs to completion even if ctx is cancelled.
func (s *Service) Analyze(ctx context.Context, sc SessionContext, info model.PatientInfo, reportText string) (*model.AnalysisResult, error) {
	if sc.Session == nil || sc.Session.ID == uuid.Nil {
		return nil, errors.State("no active session", nil)
	}
	if sc.Session.OwnerID != sc.OwnerID {
		return nil, errors.NotFound("session", nil)
	}
	if err := s.validator.Validate(info); err != nil {
		return nil, errors.Validation(err.Error(), err)
	}
	if strings.TrimSpace(reportText) == "" {
		return nil, errors.Validation("report text is required", nil)
	}

	sessionID := sc.Session.ID
	prev, err := s.tracker.Begin(sessionID)
	if err != nil {
		return nil, errors.State(err.Error(), err)
	}

	day := s.now()
	reserved, err := s.reserveQuota(ctx, sc.OwnerID, day)
	if err != nil {
		s.tracker.Abort(sessionID, prev)
		return nil, err
	}

	result, err := s.run(context.WithoutCancel(ctx), sc, model.AnalysisRequest{PatientInfo: info, ReportText: reportText})
	if err != nil {
		if reserved {
			s.refundQuota(ctx, sc.OwnerID, day)
		}
		s.tracker.Finish(sessionID, model.StateFailed)
		s.recordOutcome(ctx, sc, model.StateFailed, nil)
		return nil, err
	}

	if reserved && !result.HasSummary() && !result.HasAudio() {
		// Nothing was produced; do not charge the quota for it.
		s.refundQuota(ctx, sc.OwnerID, day)
	}

	result.State = model.StateCompleted
	s.tracker.Finish(sessionID, model.StateCompleted)
	s.recordOutcome(ctx, sc, model.StateCompleted, result)
	return result, nil
}

// reserveQuota counts one analysis against the owner's day. It reports
// whether the counter was actually incremented; an unavailable counter does
// not block the analysis.
func (s *Service) reserveQuota(ctx context.Context, ownerID uuid.UUID, day time.Time) (bool, error) {
	if s.cfg.DailyLimit <= 0 {
		return false, nil
	}
	used, err := s.usage.Increment(ctx, ownerID, day)
	if err != nil {
		s.logger.Error(err, "Failed to reserve analysis quota", "owner_id", ownerID.String())
		return false, nil
	}
	if used > s.cfg.DailyLimit {
		s.refundQuota(ctx, ownerID, day)
		return false, errors.QuotaExceeded(fmt.Sprintf("daily limit of %d analyses reached", s.cfg.DailyLimit))
	}
	return true, nil
}

func (s *Service) refundQuota(ctx context.Context, ownerID uuid.UUID, day time.Time) {
	if err := s.usage.Decrement(context.WithoutCancel(ctx), ownerID, day); err != nil {
		s.logger.Warn("Failed to refund analysis quota", "owner_id", ownerID.String(), "error", err.Error())
	}
}

type pipeline struct {
	svc    *Service
	sc     SessionContext
	log    *logger.Logger
	result *model.AnalysisResult
	trail  model.SessionLog

	mu      sync.Mutex
	crashed error
}

func (s *Service) run(ctx context.Context, sc SessionContext, req model.AnalysisRequest) (*model.AnalysisResult, error) {
	p := &pipeline{
		svc: s,
		sc:  sc,
		log: s.logger.WithFields(map[string]interface{}{
			"session_id": sc.Session.ID.String(),
			"owner_id":   sc.OwnerID.String(),
		}),
		result: &model.AnalysisResult{
			SessionID: sc.Session.ID,
			State:     model.StateAnalyzing,
		},
	}

	s.audio.ReleaseOwner(sc.OwnerID)

	p.persist(ctx, model.StepPersistUserMessage, req.PatientInfo.Summary(), model.RoleUser)

	var g errgroup.Group
	g.Go(p.guard(func() { p.english(ctx, req) }))
	g.Go(p.guard(func() { p.urdu(ctx, req) }))
	_ = g.Wait()

	if p.crashed != nil {
		return nil, errors.Internal(p.crashed)
	}

	p.result.Messages = p.trail.Entries()
	return p.result, nil
}

func (p *pipeline) english(ctx context.Context, req model.AnalysisRequest) {
	summary, err := p.call(ctx, model.StepEnglishAnalysis, func(ctx context.Context) (string, error) {
		return p.svc.text.GenerateEnglishAnalysis(ctx, req)
	})
	if err != nil {
		p.notice(model.StepEnglishAnalysis, "English analysis is unavailable right now", err)
		return
	}

	p.mu.Lock()
	p.result.EnglishSummary = summary
	p.mu.Unlock()

	if missing := model.MissingSections(summary); len(missing) > 0 {
		p.notice(model.StepSectionCheck, "Analysis is missing sections: "+strings.Join(missing, ", "), nil)
	}

	p.persist(ctx, model.StepPersistAssistantMessage, summary, model.RoleAssistant)
}

func (p *pipeline) urdu(ctx context.Context, req model.AnalysisRequest) {
	script, err := p.call(ctx, model.StepUrduScript, func(ctx context.Context) (string, error) {
		return p.svc.text.GenerateUrduScript(ctx, req)
	})
	if err != nil {
		p.notice(model.StepUrduScript, "Urdu explanation is unavailable right now", err)
		return
	}

	var audioOut *model.Audio
	_, err = p.call(ctx, model.StepSpeechSynthesis, func(ctx context.Context) (string, error) {
		a, err := p.svc.speech.SynthesizeSpeech(ctx, script)
		audioOut = a
		return "", err
	})
	if err != nil {
		p.notice(model.StepSpeechSynthesis, "Urdu audio could not be generated", err)
		return
	}

	clip := p.svc.audio.Put(p.sc.OwnerID, p.sc.Session.ID, audioOut)
	p.mu.Lock()
	p.result.AudioID = clip.ID
	p.result.UrduAudioURL = p.svc.cfg.AudioURLPrefix + clip.ID
	p.mu.Unlock()
}

// call runs one external step under the step timeout and records metrics.
func (p *pipeline) call(ctx context.Context, step string, fn func(context.Context) (string, error)) (string, error) {
	if p.svc.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.svc.cfg.StepTimeout)
		defer cancel()
	}
	started := time.Now()
	out, err := fn(ctx)
	p.svc.metrics.ObserveCall(capability(step), started, err)
	return out, err
}

func capability(step string) string {
	switch step {
	case model.StepPersistUserMessage, model.StepPersistAssistantMessage:
		return "persistence"
	default:
		return step
	}
}

func (p *pipeline) persist(ctx context.Context, step, content string, role model.Role) {
	msg := &model.Message{SessionID: p.sc.Session.ID, Content: content, Role: role}
	_, err := p.call(ctx, step, func(ctx context.Context) (string, error) {
		return "", p.svc.sessions.AppendMessage(ctx, msg)
	})
	if err != nil {
		p.notice(step, "Message could not be saved to the session", err)
		return
	}
	p.mu.Lock()
	p.trail.Append(*msg)
	p.mu.Unlock()
}

func (p *pipeline) notice(step, message string, err error) {
	if err != nil {
		p.log.Error(err, "Analysis step failed", "step", step)
	} else {
		p.log.Warn(message, "step", step)
	}
	p.mu.Lock()
	p.result.Notices = append(p.result.Notices, model.Notice{Step: step, Message: message})
	p.mu.Unlock()
}

func (p *pipeline) guard(fn func()) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				p.mu.Lock()
				p.crashed = fmt.Errorf("analysis step panicked: %v", r)
				p.mu.Unlock()
				p.log.Error(p.crashed, "Analysis aborted")
			}
		}()
		fn()
		return nil
	}
}

func (s *Service) recordOutcome(ctx context.Context, sc SessionContext, state model.AnalysisState, result *model.AnalysisResult) {
	if s.metrics != nil {
		s.metrics.Analyses.WithLabelValues(string(state)).Inc()
	}

	payload := event.AnalysisCompleted{
		SessionID: sc.Session.ID,
		OwnerID:   sc.OwnerID,
		State:     state,
		At:        s.now().UTC(),
	}
	if result != nil {
		payload.HasSummary = result.HasSummary()
		payload.HasAudio = result.HasAudio()
		payload.Notices = len(result.Notices)
	}
	if err := s.events.Emit(context.WithoutCancel(ctx), model.EventAnalysisCompleted, payload); err != nil {
		s.logger.Error(err, "Failed to record analysis event", "session_id", sc.Session.ID.String())
	}

	s.logger.Info("Analysis finished",
		"session_id", sc.Session.ID.String(),
		"state", string(state),
		"has_summary", payload.HasSummary,
		"has_audio", payload.HasAudio,
		"notices", payload.Notices)
}
