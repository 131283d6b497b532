package core

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"caliseed/internal/types"
)

// errCodeValidationInvalidQuery is local to the HTTP layer; no store or job
// produces it.
const errCodeValidationInvalidQuery types.ErrorCode = "validation_invalid_query"

// QueryParams holds the filters accepted by the list endpoints. Absent
// parameters are zero values and do not filter.
type QueryParams struct {
	Location  string `validate:"omitempty,max=100"`
	EventType string `validate:"omitempty,max=100"`
	Limit     int    `validate:"min=1,max=1000"`
}

// Validator checks query parameters with go-playground/validator.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// ParseQuery reads location, event_type and limit from r. A missing limit
// defaults to types.DefaultListLimit; a non-integer or out-of-range limit is
// ErrCodeValidationInvalidLimit.
func (v *Validator) ParseQuery(r *http.Request) (QueryParams, error) {
	q := r.URL.Query()
	p := QueryParams{
		Location:  q.Get("location"),
		EventType: q.Get("event_type"),
		Limit:     types.DefaultListLimit,
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return QueryParams{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLimit,
				"limit must be an integer", err, map[string]any{"limit": raw})
		}
		p.Limit = n
	}

	if err := v.v.Struct(p); err != nil {
		if fe, ok := err.(validator.ValidationErrors); ok && len(fe) > 0 && fe[0].Field() == "Limit" {
			return QueryParams{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLimit,
				"limit must be between 1 and 1000", err, map[string]any{"limit": p.Limit})
		}
		return QueryParams{}, types.NewAppError(errCodeValidationInvalidQuery, "invalid query parameter", err)
	}
	return p, nil
}
