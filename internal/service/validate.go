package service

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so the UI can highlight the right form field.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// EventInput carries the organizer-owned content fields.
type EventInput struct {
	Title       string    `json:"title" validate:"max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"max=300"`
	Category    string    `json:"category" validate:"max=100"`
	StartsAt    time.Time `json:"starts_at"`
	Capacity    int       `json:"max_participants" validate:"gte=0,lte=100000"`
}

func (in *EventInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	in.Category = strings.TrimSpace(in.Category)
	if !in.StartsAt.IsZero() {
		in.StartsAt = in.StartsAt.UTC()
	}
}

func (in *EventInput) validate() error {
	in.normalize()
	return asValidationError(validate.Struct(in))
}

// submission lists what an event must carry before review.
type submission struct {
	Title       string    `json:"title" validate:"required"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	Location    string    `json:"location" validate:"required"`
	Capacity    int       `json:"max_participants" validate:"gte=0"`
	Description string    `json:"description" validate:"required"`
}

// checkComplete returns an *model.IncompleteEventError naming every missing
// field, or nil.
func checkComplete(e *model.Event) error {
	err := validate.Struct(submission{
		Title:       strings.TrimSpace(e.Title),
		StartsAt:    e.StartsAt,
		Location:    strings.TrimSpace(e.Location),
		Capacity:    e.Capacity,
		Description: strings.TrimSpace(e.Description),
	})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return &model.IncompleteEventError{Missing: missing}
}

func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &model.ValidationError{Field: fe.Field(), Message: "failed " + fe.Tag() + " check"}
	}
	return err
}
