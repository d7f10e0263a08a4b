// Package report defines the run requests accepted by the report service and
// their validation and wire encoding.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a report type. Values match the history "type" field.
type Kind string

const (
	KindEOD          Kind = "EOD"
	KindSprintReview Kind = "SPRINT_REVIEW"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// DefaultSprintLength is the range pre-filled when no dates are given.
const DefaultSprintLength = 14 * 24 * time.Hour

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindEOD, KindSprintReview}

// ParseKind accepts the CLI spelling ("eod", "sprint-review") as well as the
// wire spelling ("EOD", "SPRINT_REVIEW").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eod":
		return KindEOD, nil
	case "sprint-review", "sprint_review", "sprintreview", "sprint":
		return KindSprintReview, nil
	default:
		return "", fmt.Errorf("unknown report kind %q (want eod or sprint-review)", s)
	}
}

// Slug returns the CLI spelling of the kind.
func (k Kind) Slug() string {
	switch k {
	case KindEOD:
		return "eod"
	case KindSprintReview:
		return "sprint-review"
	default:
		return strings.ToLower(string(k))
	}
}

// Title returns the human name used in banners and failure messages.
func (k Kind) Title() string {
	switch k {
	case KindEOD:
		return "EOD"
	case KindSprintReview:
		return "Sprint Review"
	default:
		return string(k)
	}
}

// Path returns the service endpoint that runs this kind.
func (k Kind) Path() string {
	switch k {
	case KindEOD:
		return "/run-eod"
	case KindSprintReview:
		return "/run-sprint-review"
	default:
		return ""
	}
}

// SprintReviewParams are the user inputs of a sprint review.
type SprintReviewParams struct {
	StartDate string   `json:"startDate" yaml:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string   `json:"endDate"   yaml:"end_date"   validate:"required,datetime=2006-01-02"`
	Tickets   []string `json:"tickets"   yaml:"tickets"    validate:"min=1,dive,required"`
}

// Request is one report invocation. It is treated as immutable once a run
// starts; use Clone before handing it to code that may keep it.
type Request struct {
	Kind         Kind                `json:"kind"`
	SprintReview *SprintReviewParams `json:"sprintReview,omitempty"`
}

// NewEODRequest returns an end-of-day request.
func NewEODRequest() Request {
	return Request{Kind: KindEOD}
}

// NewSprintReviewRequest returns a sprint review request. Tickets are trimmed
// and blank entries dropped before they are stored.
func NewSprintReviewRequest(startDate, endDate string, tickets []string) Request {
	return Request{
		Kind: KindSprintReview,
		SprintReview: &SprintReviewParams{
			StartDate: strings.TrimSpace(startDate),
			EndDate:   strings.TrimSpace(endDate),
			Tickets:   NormalizeTickets(tickets),
		},
	}
}

// NormalizeTickets trims every entry, drops blanks and keeps order and
// duplicates.
func NormalizeTickets(tickets []string) []string {
	out := make([]string, 0, len(tickets))
	for _, t := range tickets {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// DefaultSprintRange returns the start and end dates pre-filled for a sprint
// review ending at now.
func DefaultSprintRange(now time.Time) (start, end string) {
	return now.Add(-DefaultSprintLength).Format(DateLayout), now.Format(DateLayout)
}

// Clone returns a deep copy.
func (r Request) Clone() Request {
	out := Request{Kind: r.Kind}
	if r.SprintReview != nil {
		p := *r.SprintReview
		p.Tickets = append([]string(nil), r.SprintReview.Tickets...)
		out.SprintReview = &p
	}
	return out
}

// Equal reports whether both requests would produce the same outbound call.
func (r Request) Equal(other Request) bool {
	a, errA := r.Body()
	b, errB := other.Body()
	return r.Kind == other.Kind && errA == nil && errB == nil && bytes.Equal(a, b)
}

// TicketDetail is the parsed form of a ticket identifier.
type TicketDetail struct {
	ID     string  `json:"id"`
	Type   string  `json:"type"`
	Number *string `json:"number,omitempty"`
}

// ParseTicket splits a ticket on its first dash: "PROJ-123" has type "PROJ"
// and number "123". Without a dash the number is absent.
func ParseTicket(ticket string) TicketDetail {
	typ, number, found := strings.Cut(ticket, "-")
	d := TicketDetail{ID: ticket, Type: typ}
	if found {
		d.Number = &number
	}
	return d
}

// DateRange is the metadata copy of the requested dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SprintReviewMetadata accompanies the sprint review payload.
type SprintReviewMetadata struct {
	DateRange     DateRange      `json:"date_range"`
	TicketDetails []TicketDetail `json:"ticket_details"`
}

// SprintReviewPayload is the JSON body of POST /run-sprint-review.
type SprintReviewPayload struct {
	StartDate string               `json:"startDate"`
	EndDate   string               `json:"endDate"`
	Tickets   []string             `json:"tickets"`
	Metadata  SprintReviewMetadata `json:"metadata"`
}

// Payload builds the request body, or nil for kinds that send none.
func (r Request) Payload() any {
	if r.Kind != KindSprintReview || r.SprintReview == nil {
		return nil
	}
	p := r.SprintReview
	details := make([]TicketDetail, 0, len(p.Tickets))
	for _, t := range p.Tickets {
		details = append(details, ParseTicket(t))
	}
	return SprintReviewPayload{
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Tickets:   append([]string{}, p.Tickets...),
		Metadata: SprintReviewMetadata{
			DateRange:     DateRange{Start: p.StartDate, End: p.EndDate},
			TicketDetails: details,
		},
	}
}

// Body returns the encoded payload, nil when the kind sends no body.
func (r Request) Body() ([]byte, error) {
	payload := r.Payload()
	if payload == nil {
		return nil, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", r.Kind.Title(), err)
	}
	return data, nil
}
