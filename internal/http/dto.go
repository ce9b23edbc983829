package http

import (
	"strings"
	"time"

	"github.com/example/swapmarket/internal/application"
)

// EventDTO is the wire form of a calendar event.
type EventDTO struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// SwapDTO is the wire form of a swap proposal. It is also the payload of
// swapRequest and swapResponse notifications.
type SwapDTO struct {
	ID        string `json:"id"`
	FromUser  string `json:"fromUser"`
	ToUser    string `json:"toUser"`
	FromEvent string `json:"fromEvent"`
	ToEvent   string `json:"toEvent"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type userSummaryDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type swapDetailDTO struct {
	ID        string          `json:"id"`
	FromUser  *userSummaryDTO `json:"fromUser"`
	ToUser    *userSummaryDTO `json:"toUser"`
	FromEvent *EventDTO       `json:"fromEvent"`
	ToEvent   *EventDTO       `json:"toEvent"`
	Status    string          `json:"status"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type timeRangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toEventDTO(event application.Event) EventDTO {
	return EventDTO{
		ID:          event.ID,
		UserID:      event.OwnerID,
		Title:       event.Title,
		Description: event.Description,
		StartTime:   formatTimestamp(event.Start),
		EndTime:     formatTimestamp(event.End),
		Status:      string(event.Status),
		CreatedAt:   formatTimestamp(event.CreatedAt),
		UpdatedAt:   formatTimestamp(event.UpdatedAt),
	}
}

func toEventDTOs(events []application.Event) []EventDTO {
	dtos := make([]EventDTO, 0, len(events))
	for _, event := range events {
		dtos = append(dtos, toEventDTO(event))
	}
	return dtos
}

func optionalEventDTO(event *application.Event) *EventDTO {
	if event == nil {
		return nil
	}
	dto := toEventDTO(*event)
	return &dto
}

// SwapPayload converts a swap to its wire form.
func SwapPayload(swap application.Swap) SwapDTO {
	return SwapDTO{
		ID:        swap.ID,
		FromUser:  swap.FromUserID,
		ToUser:    swap.ToUserID,
		FromEvent: swap.FromEventID,
		ToEvent:   swap.ToEventID,
		Status:    string(swap.Status),
		CreatedAt: formatTimestamp(swap.CreatedAt),
		UpdatedAt: formatTimestamp(swap.UpdatedAt),
	}
}

func toUserSummaryDTO(user *application.UserSummary) *userSummaryDTO {
	if user == nil {
		return nil
	}
	return &userSummaryDTO{ID: user.ID, Name: user.Name, Email: user.Email}
}

func toSwapDetailDTO(detail application.SwapDetail) swapDetailDTO {
	return swapDetailDTO{
		ID:        detail.Swap.ID,
		FromUser:  toUserSummaryDTO(detail.FromUser),
		ToUser:    toUserSummaryDTO(detail.ToUser),
		FromEvent: optionalEventDTO(detail.FromEvent),
		ToEvent:   optionalEventDTO(detail.ToEvent),
		Status:    string(detail.Swap.Status),
		CreatedAt: formatTimestamp(detail.Swap.CreatedAt),
		UpdatedAt: formatTimestamp(detail.Swap.UpdatedAt),
	}
}

// eventRequest accepts both the create field names (start, end, type) and
// the update field names (startTime, endTime, status).
type eventRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	StartTime   *string `json:"startTime"`
	EndTime     *string `json:"endTime"`
	Type        *string `json:"type"`
	Status      *string `json:"status"`
}

func firstNonNil(values ...*string) *string {
	for _, value := range values {
		if value != nil {
			return value
		}
	}
	return nil
}

func (r eventRequest) toPatch() (application.EventPatch, error) {
	patch := application.EventPatch{
		Title:       r.Title,
		Description: r.Description,
	}
	invalid := make(map[string]string)

	if value := firstNonNil(r.StartTime, r.Start); value != nil {
		start, err := parseTimestamp(*value)
		if err != nil {
			invalid["start"] = "invalid"
		} else {
			patch.Start = &start
		}
	}
	if value := firstNonNil(r.EndTime, r.End); value != nil {
		end, err := parseTimestamp(*value)
		if err != nil {
			invalid["end"] = "invalid"
		} else {
			patch.End = &end
		}
	}
	if value := firstNonNil(r.Status, r.Type); value != nil {
		status := application.EventStatus(strings.ToUpper(strings.TrimSpace(*value)))
		patch.Status = &status
	}

	if len(invalid) > 0 {
		return application.EventPatch{}, &application.ValidationError{FieldErrors: invalid}
	}
	return patch, nil
}

func (r eventRequest) toInput() (application.EventInput, error) {
	patch, err := r.toPatch()
	if err != nil {
		return application.EventInput{}, err
	}

	var input application.EventInput
	if patch.Title != nil {
		input.Title = *patch.Title
	}
	if patch.Description != nil {
		input.Description = *patch.Description
	}
	if patch.Start != nil {
		input.Start = *patch.Start
	}
	if patch.End != nil {
		input.End = *patch.End
	}
	if patch.Status != nil {
		input.Status = *patch.Status
	}
	return input, nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
