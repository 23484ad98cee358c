// Package lead captures owner contact requests, deduplicating them by
// normalized email or phone.
package lead

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	appLog "temporada/internal/log"
	"temporada/internal/metrics"
)

const (
	DefaultCity   = "Aracaju"
	DefaultSource = "site"
)

// Submission outcomes.
const (
	StatusCreated   = "CREATED"
	StatusDuplicate = "DUPLICATE"
)

// Input is the raw form payload.
type Input struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	PropertyTitle string `json:"propertyTitle"`
	Source        string `json:"source"`
}

// Lead is a stored contact. Email and Phone hold the normalized values.
type Lead struct {
	ID            string    `json:"id"`
	Name          string    `json:"name" validate:"required"`
	Email         string    `json:"email" validate:"required_without=Phone"`
	Phone         string    `json:"phone" validate:"required_without=Email"`
	City          string    `json:"city"`
	PropertyTitle string    `json:"property_title"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"created_at"`
	LastContactAt time.Time `json:"last_contact_at"`
}

// Result is returned by Submit.
type Result struct {
	Status string `json:"status"`
	Lead   Lead   `json:"lead"`
}

// ValidationError carries a user-facing message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrNotFound is returned by Touch for an unknown id.
var ErrNotFound = errors.New("lead: not found")

// ErrDuplicate is returned by Store.Create when a lead with the same email
// or phone already exists.
var ErrDuplicate = errors.New("lead: duplicate contact")

// Store persists leads.
type Store interface {
	// FindByContact returns the first lead matching email or phone; empty
	// values are ignored. ok is false when nothing matches.
	FindByContact(ctx context.Context, email, phone string) (Lead, bool, error)
	Create(ctx context.Context, l Lead) (Lead, error)
	// Touch overwrites the contact fields of id and bumps LastContactAt.
	Touch(ctx context.Context, id string, l Lead) (Lead, error)
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone keeps only digits.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Service validates submissions and stores them once per contact.
type Service struct {
	store       Store
	metrics     *metrics.Metrics
	validate    *validator.Validate
	defaultCity string
	now         func() time.Time
}

func NewService(store Store, defaultCity string, m *metrics.Metrics) *Service {
	if defaultCity == "" {
		defaultCity = DefaultCity
	}
	return &Service{
		store:       store,
		metrics:     m,
		validate:    validator.New(),
		defaultCity: defaultCity,
		now:         time.Now,
	}
}

// Prepare normalizes in and checks it. Validation failures are
// *ValidationError.
func (s *Service) Prepare(in Input) (Lead, error) {
	l := Lead{
		Name:          strings.TrimSpace(in.Name),
		Email:         NormalizeEmail(in.Email),
		Phone:         NormalizePhone(in.Phone),
		City:          strings.TrimSpace(in.City),
		PropertyTitle: strings.TrimSpace(in.PropertyTitle),
		Source:        in.Source,
	}
	if l.City == "" {
		l.City = s.defaultCity
	}
	if l.Source == "" {
		l.Source = DefaultSource
	}

	if err := s.validate.Struct(l); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Name" {
			return l, &ValidationError{Message: "Informe seu nome."}
		}
		return l, &ValidationError{Message: "Informe e-mail ou telefone."}
	}
	return l, nil
}

// Submit stores a new lead or refreshes the existing one with the same email
// or phone.
func (s *Service) Submit(ctx context.Context, in Input) (Result, error) {
	l, err := s.Prepare(in)
	if err != nil {
		return Result{}, err
	}

	existing, ok, err := s.store.FindByContact(ctx, l.Email, l.Phone)
	if err != nil {
		return Result{}, err
	}
	if ok {
		return s.touch(ctx, existing.ID, l)
	}

	now := s.now().UTC()
	l.CreatedAt = now
	l.LastContactAt = now
	created, err := s.store.Create(ctx, l)
	if errors.Is(err, ErrDuplicate) {
		// Lost a race with a concurrent submission for the same contact.
		existing, ok, ferr := s.store.FindByContact(ctx, l.Email, l.Phone)
		if ferr != nil {
			return Result{}, ferr
		}
		if ok {
			s.metrics.LeadSubmitted(StatusDuplicate)
			return Result{Status: StatusDuplicate, Lead: existing}, nil
		}
	}
	if err != nil {
		return Result{}, err
	}

	s.metrics.LeadSubmitted(StatusCreated)
	appLog.Info("lead created", "id", created.ID, "city", created.City, "source", created.Source)
	return Result{Status: StatusCreated, Lead: created}, nil
}

func (s *Service) touch(ctx context.Context, id string, l Lead) (Result, error) {
	l.LastContactAt = s.now().UTC()
	updated, err := s.store.Touch(ctx, id, l)
	if err != nil {
		return Result{}, err
	}
	s.metrics.LeadSubmitted(StatusDuplicate)
	appLog.Info("lead contact refreshed", "id", updated.ID)
	return Result{Status: StatusDuplicate, Lead: updated}, nil
}
