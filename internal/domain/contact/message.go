// Package contact stores messages sent through the contact page.
package contact

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kg-components/storefront/internal/store"
	"gorm.io/gorm"
)

const MessagesTable = "contact_messages"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid contact message")

var validate = validator.New()

// Message is a contact form submission
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" validate:"required,max=255"`
	Email     string    `gorm:"size:255;not null" json:"email" validate:"required,email"`
	Subject   string    `gorm:"size:255" json:"subject,omitempty" validate:"max=255"`
	Message   string    `gorm:"type:text;not null" json:"message" validate:"required,max=5000"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name for Message
func (Message) TableName() string {
	return MessagesTable
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Writer is the part of the store handle the contact form needs
type Writer interface {
	Upsert(ctx context.Context, table string, rows any, conflict store.Conflict) error
}

// Submit validates and stores a message. Nothing is written when
// validation fails.
func Submit(ctx context.Context, w Writer, m Message) (*Message, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)

	if err := validate.Struct(m); err != nil {
		return nil, &FieldError{fields: failedFields(err)}
	}
	if err := w.Upsert(ctx, MessagesTable, &m, store.Conflict{}); err != nil {
		return nil, err
	}
	return &m, nil
}

// FieldError lists the fields that failed validation
type FieldError struct {
	fields []string
}

func (e *FieldError) Error() string {
	return "please fill in: " + strings.Join(e.fields, ", ")
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}

// Fields returns the failed field names in form order
func (e *FieldError) Fields() []string {
	return append([]string(nil), e.fields...)
}

func failedFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{"form"}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, strings.ToLower(fe.Field()))
	}
	return out
}
