package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/discovery-widget/internal/leads"
	"github.com/wolfman30/discovery-widget/internal/notify"
	"github.com/wolfman30/discovery-widget/internal/protocol"
	"github.com/wolfman30/discovery-widget/pkg/logging"
)

// Recorder receives summary and email outcomes.
type Recorder interface {
	ObserveSummary(reason string, err error)
	ObserveEmail(kind string, err error)
}

// Options tunes a Service.
type Options struct {
	// MinMessages rejects shorter transcripts. Defaults to 10.
	MinMessages int
	// TeamEmail resolves the recipient on every call.
	TeamEmail func() string
	// LeadRecap also mails the visitor a short recap when an email is known.
	LeadRecap bool
	Now       func() time.Time
}

// Result describes a processed conversation.
type Result struct {
	SummaryID string
	Subject   string
	Analysis  Analysis
	RecapSent bool
}

// Service analyzes finished conversations and emails the summary.
type Service struct {
	sender  notify.EmailSender
	opts    Options
	metrics Recorder
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewService wires a Service. sender must not be nil.
func NewService(sender notify.EmailSender, opts Options, metrics Recorder, logger *logging.Logger) *Service {
	if sender == nil {
		panic("tracker: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if opts.MinMessages <= 0 {
		opts.MinMessages = 10
	}
	if opts.TeamEmail == nil {
		opts.TeamEmail = func() string { return "team@aisync101.com" }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sender:  sender,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		tracer:  otel.Tracer("discovery.internal.tracker"),
	}
}

// Process analyzes req and sends the team summary. Lead details supplied by
// the client take precedence over those found in the transcript.
func (s *Service) Process(ctx context.Context, req protocol.CompleteRequest) (Result, error) {
	reason := req.Metadata.EndReason
	ctx, span := s.tracer.Start(ctx, "tracker.process")
	defer span.End()
	span.SetAttributes(
		attribute.Int("tracker.messages", len(req.Messages)),
		attribute.String("tracker.reason", reason),
	)

	if len(req.Messages) < s.opts.MinMessages {
		s.observeSummary(reason, ErrTooShort)
		return Result{}, ErrTooShort
	}

	analysis := Analyze(req.Messages)
	meta := req.Metadata.LeadInfo
	lead := meta
	lead.Merge(analysis.Contact)
	if meta.Problem != "" {
		lead.Problem = meta.Problem
	}
	if meta.Intent != "" {
		lead.Intent = meta.Intent
	}
	analysis.Contact = lead
	if analysis.MainProblem == "" {
		analysis.MainProblem = lead.Problem
	}
	analysis.Engagement = engagement(analysis.WantsToSchedule, lead, len(req.Messages))

	html, text, err := RenderSummary(analysis, req.Messages, s.opts.Now())
	if err != nil {
		span.RecordError(err)
		s.observeSummary(reason, err)
		return Result{}, err
	}

	res := Result{
		SummaryID: uuid.NewString(),
		Subject:   Subject(analysis),
		Analysis:  analysis,
	}
	to := s.opts.TeamEmail()
	err = s.sender.Send(ctx, notify.EmailMessage{To: to, Subject: res.Subject, Body: text, HTML: html})
	s.observeEmail("team", err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "team email failed")
		s.observeSummary(reason, err)
		s.logger.Error("summary email failed", "error", err, "conversation_id", req.Metadata.ConversationID)
		return Result{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	s.observeSummary(reason, nil)
	s.logger.Info("conversation summary sent",
		"summary_id", res.SummaryID,
		"conversation_id", req.Metadata.ConversationID,
		"engagement", string(analysis.Engagement),
		"messages", len(req.Messages),
		"reason", reason,
	)

	if s.opts.LeadRecap && lead.Email != "" {
		res.RecapSent = s.sendRecap(ctx, lead, analysis)
	}
	return res, nil
}

func (s *Service) sendRecap(ctx context.Context, lead leads.Info, a Analysis) bool {
	subject, html, text, err := RenderRecap(lead, a)
	if err == nil {
		err = s.sender.Send(ctx, notify.EmailMessage{To: lead.Email, ToName: lead.Name, Subject: subject, Body: text, HTML: html})
	}
	s.observeEmail("recap", err)
	if err != nil {
		s.logger.Warn("lead recap email failed", "error", err)
		return false
	}
	return true
}

func (s *Service) observeSummary(reason string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveSummary(reason, err)
	}
}

func (s *Service) observeEmail(kind string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveEmail(kind, err)
	}
}
