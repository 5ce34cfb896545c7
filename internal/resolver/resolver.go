// Package resolver orchestrates answering a free-form question: relevance
// filter, knowledge-base lookup, then remote-completion fallback.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"monitorbot/internal/domain"
)

const (
	defaultThreshold = 0.7
	defaultTimeout   = 10 * time.Second
)

// Finder is the knowledge lookup consumed by the resolver.
type Finder interface {
	FindAnswer(question string) (string, float64)
}

// Completer is the remote completion collaborator.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, question string) (string, error)
}

// ProgressFunc is invoked when resolution falls through to the remote model,
// letting the caller surface a progress notice before the slow call.
type ProgressFunc func(ctx context.Context)

// Config carries the tunables for a Resolver.
type Config struct {
	// Keywords gate questions on topic via case-insensitive substring match.
	Keywords []string
	// Threshold is compared strictly less-than against lookup confidence.
	Threshold float64
	// Timeout bounds the remote completion call.
	Timeout time.Duration
	// SystemPrompt scopes the remote model to the domain.
	SystemPrompt string
}

type Resolver struct {
	store     Finder
	remote    Completer
	keywords  []string
	threshold float64
	timeout   time.Duration
	prompt    string
	log       *slog.Logger
}

func New(store Finder, remote Completer, cfg Config, log *slog.Logger) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("resolver: finder must not be nil")
	}
	if remote == nil {
		return nil, errors.New("resolver: completer must not be nil")
	}
	if len(cfg.Keywords) == 0 {
		return nil, errors.New("resolver: keyword list must not be empty")
	}
	if log == nil {
		log = slog.Default()
	}
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		store:     store,
		remote:    remote,
		keywords:  keywords,
		threshold: threshold,
		timeout:   timeout,
		prompt:    cfg.SystemPrompt,
		log:       log,
	}, nil
}

// Resolve answers question for identity. Off-topic questions are rejected
// without further processing. A knowledge-base match is accepted only when
// its confidence strictly exceeds the threshold; otherwise the remote model
// is asked under a bounded timeout, with progress called (when non-nil) just
// before the slow path. Remote failures are never retried here.
func (r *Resolver) Resolve(ctx context.Context, identity int64, question string, progress ProgressFunc) (domain.Answer, error) {
	if !r.onTopic(question) {
		return domain.Answer{}, newError(ErrorOffTopic, "keyword_filter", nil)
	}

	if answer, confidence := r.store.FindAnswer(question); confidence > r.threshold {
		return domain.Answer{Text: answer, Source: domain.SourceKnowledgeBase}, nil
	}

	if progress != nil {
		progress(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.remote.Complete(ctx, r.prompt, question)
	if err != nil {
		r.log.Error("remote completion failed", "identity", identity, "question", question, "err", err)
		return domain.Answer{}, newError(ErrorUpstream, "completion_error", err)
	}
	return domain.Answer{Text: text, Source: domain.SourceRemoteModel}, nil
}

// onTopic is a cheap substring relevance filter, not intent classification.
// On-topic questions that miss every keyword are an accepted false negative.
func (r *Resolver) onTopic(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range r.keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
