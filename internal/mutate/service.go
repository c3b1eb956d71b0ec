package mutate

import (
	"context"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/model"
	"newsdesk/internal/store"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
)

// Publisher receives events after the unit of work that produced them commits.
// Publish must not block.
type Publisher interface {
	Publish(ev model.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev model.Event)

func (f PublisherFunc) Publish(ev model.Event) { f(ev) }

type nopPublisher struct{}

func (nopPublisher) Publish(model.Event) {}

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Service is the only writer of board order and attendance cells.
//
// Operations run one at a time per process. Each one reads, plans and writes in
// a single store transaction, and its events are published after commit while
// the lock is still held, so subscribers see events in commit order.
type Service struct {
	mu       sync.Mutex
	st       *store.Store
	pub      Publisher
	log      *slog.Logger
	now      func() time.Time
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewService(st *store.Store, pub Publisher, opts Options) *Service {
	if pub == nil {
		pub = nopPublisher{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Service{
		st:       st,
		pub:      pub,
		log:      log.With("component", "mutate"),
		now:      now,
		validate: v,
		tracer:   otel.Tracer("newsdesk/mutate"),
	}
}

// Result is what every board operation reports back to its caller.
type Result struct {
	Success bool           `json:"success"`
	Order   []int64        `json:"order,omitempty"`
	Article *model.Article `json:"article,omitempty"`
	Changed bool           `json:"changed"`
}

// mutate runs fn in one write transaction and publishes the events it returns
// once the transaction has committed. On error nothing is published.
func (s *Service) mutate(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(tx *store.Tx) ([]model.Event, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "mutate."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	var events []model.Event
	err := s.st.Update(ctx, func(tx *store.Tx) error {
		evs, err := fn(tx)
		if err != nil {
			return err
		}
		events = evs
		return nil
	})
	mutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		err = classify(op, err)
		code := Code(err)
		mutationsTotal.WithLabelValues(op, code).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		if code == "storage" {
			s.log.Error("mutation failed", "op", op, "error", err)
		} else {
			s.log.Debug("mutation rejected", "op", op, "code", code, "error", err)
		}
		return err
	}

	for _, ev := range events {
		s.pub.Publish(ev)
	}
	mutationsTotal.WithLabelValues(op, "ok").Inc()
	span.SetAttributes(attribute.Int("events", len(events)))
	s.log.Debug("mutation applied", "op", op, "events", len(events))
	return nil
}

func (s *Service) view(ctx context.Context, op string, fn func(tx *store.Tx) error) error {
	if err := s.st.View(ctx, fn); err != nil {
		return classify(op, err)
	}
	return nil
}

// clean trims s and puts it in NFC so visually identical names compare equal.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func (s *Service) validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return ValidationError{Field: fe.Field(), Reason: describeTag(fe.Tag(), fe.Param())}
	}
	return ValidationError{Reason: err.Error()}
}

func (s *Service) checkVar(field string, v any, tag string) error {
	if err := s.validate.Var(v, tag); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return ValidationError{Field: field, Reason: describeTag(verrs[0].Tag(), verrs[0].Param())}
		}
		return ValidationError{Field: field, Reason: err.Error()}
	}
	return nil
}

func describeTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + param + " characters"
	case "min":
		return "must be at least " + param + " characters"
	case "datetime":
		return "must be a date in " + param + " form"
	}
	if param != "" {
		return tag + "=" + param
	}
	return tag
}

func idAttr(id int64) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int64("article.id", id)}
}
