package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/SscSPs/ledger_balances/internal/apperrors"
	"github.com/SscSPs/ledger_balances/internal/core/domain"
	portssvc "github.com/SscSPs/ledger_balances/internal/core/ports/services"
	"github.com/SscSPs/ledger_balances/internal/dto"
)

// MessageType names the ledger mutation carried by an event.
type MessageType string

const (
	TypeCreate    MessageType = "create"
	TypeUpdate    MessageType = "update"
	TypeDelete    MessageType = "delete"
	TypeRecompute MessageType = "recompute"
)

// Message is the JSON payload of a ledger line event. Lines and updates reuse the HTTP request
// shapes so both surfaces validate identically.
type Message struct {
	Type          MessageType             `json:"type" binding:"required,oneof=create update delete recompute"`
	Lines         []dto.CreateLineRequest `json:"lines,omitempty" binding:"dive"`
	Updates       []dto.UpdateLineRequest `json:"updates,omitempty" binding:"dive"`
	IDs           []int64                 `json:"ids,omitempty"`
	SkipRecompute bool                    `json:"skipRecompute,omitempty"`
}

// newValidator reads the same struct tags gin validates HTTP bodies with.
func newValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// decodeMessage parses and validates a payload. Every failure wraps apperrors.ErrValidation.
func decodeMessage(v *validator.Validate, payload []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: malformed event: %v", apperrors.ErrValidation, err)
	}
	if err := v.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	var empty bool
	switch msg.Type {
	case TypeCreate:
		empty = len(msg.Lines) == 0
	case TypeUpdate:
		empty = len(msg.Updates) == 0
	default:
		empty = len(msg.IDs) == 0
	}
	if empty {
		return nil, fmt.Errorf("%w: %s event without payload", apperrors.ErrValidation, msg.Type)
	}
	return &msg, nil
}

// dispatch applies msg through the ledger service.
func dispatch(ctx context.Context, ledger portssvc.LedgerWriterSvc, msg *Message) error {
	opts := domain.MutationOptions{SkipRecompute: msg.SkipRecompute}
	switch msg.Type {
	case TypeCreate:
		inputs, err := dto.CreateLinesRequest{Lines: msg.Lines}.ToLineInputs()
		if err != nil {
			return err
		}
		_, err = ledger.CreateLines(ctx, inputs, opts)
		return err
	case TypeUpdate:
		updates, err := dto.UpdateLinesRequest{Updates: msg.Updates}.ToLineUpdates()
		if err != nil {
			return err
		}
		_, err = ledger.UpdateLines(ctx, updates, opts)
		return err
	case TypeDelete:
		_, err := ledger.DeleteLines(ctx, msg.IDs, opts)
		return err
	case TypeRecompute:
		_, err := ledger.RecomputeLines(ctx, msg.IDs)
		return err
	default:
		return fmt.Errorf("%w: unknown event type %q", apperrors.ErrValidation, msg.Type)
	}
}
