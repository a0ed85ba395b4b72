package notify

import (
	"fmt"
	"strings"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/inbox/internal/core/validate"
)

// Normalize fills optional fields with their defaults.
func (p CreatePayload) Normalize() CreatePayload {
	if p.Type == "" {
		p.Type = TypeInfo
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	p.Title = strings.TrimSpace(p.Title)
	p.UserID = strings.TrimSpace(p.UserID)
	return p
}

// Validate checks the payload before it is sent. Failures are a *ValidationError
// wrapping criterio.FieldErrors.
func (p CreatePayload) Validate() error {
	err := criterio.ValidateStruct(
		validate.Title("title", p.Title),
		validate.Message("message", p.Message),
		criterio.Run("type", p.Type, validate.OneOf(Types...)),
		criterio.Run("priority", p.Priority, validate.OneOf(Priorities...)),
		validate.UserID("userId", p.UserID),
	)
	if err != nil {
		return &ValidationError{Op: "create notification", Err: err}
	}
	return nil
}

// Normalize fills optional fields with their defaults and drops blank or
// duplicate recipients.
func (p BulkPayload) Normalize() BulkPayload {
	if p.Type == "" {
		p.Type = TypeInfo
	}
	if p.Priority == "" {
		p.Priority = PriorityMedium
	}
	p.Title = strings.TrimSpace(p.Title)
	seen := make(map[string]bool, len(p.UserIDs))
	ids := make([]string, 0, len(p.UserIDs))
	for _, id := range p.UserIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	p.UserIDs = ids
	return p
}

// Validate checks the bulk payload before it is sent.
func (p BulkPayload) Validate() error {
	var errs criterio.FieldErrorsBuilder
	if len(p.UserIDs) == 0 {
		errs = errs.Append("userIds", fmt.Errorf("at least one recipient is required"))
	}
	for i, id := range p.UserIDs {
		if err := validate.Required(id); err != nil {
			errs = errs.Append(fmt.Sprintf("userIds[%d]", i), err)
		}
	}

	err := criterio.ValidateStruct(
		validate.Title("title", p.Title),
		validate.Message("message", p.Message),
		criterio.Run("type", p.Type, validate.OneOf(Types...)),
		criterio.Run("priority", p.Priority, validate.OneOf(Priorities...)),
		errs.ToError(),
	)
	if err != nil {
		return &ValidationError{Op: "create notifications", Err: err}
	}
	return nil
}
