// Package quality computes a deterministic completeness score over the
// context gathered for a task. The score is a weighted presence model:
// each factor contributes its full weight when its signal is non-empty
// and zero otherwise, so the result is always in [0, 1].
package quality

import "github.com/devscontext/devscontext/internal/source"

// GapKind names a missing context factor.
type GapKind string

const (
	GapAcceptanceCriteria GapKind = "acceptance_criteria"
	GapComponents         GapKind = "components"
	GapLabels             GapKind = "labels"
	GapMeetings           GapKind = "meetings"
	GapDocumentation      GapKind = "documentation"
	GapLinkedIssues       GapKind = "linked_issues"
)

// Gap is a missing factor surfaced to help prioritize further data
// collection.
type Gap struct {
	Kind        GapKind `json:"kind"`
	Description string  `json:"description"`
}

// Factor weights in basis points of 100. They sum to 100, and the
// score is the integer sum divided by 100 once, so a fully present
// context scores exactly 1.0 (no float accumulation drift).
const (
	weightAcceptanceCriteria = 25
	weightComponents         = 15
	weightLabels             = 10
	weightMeetings           = 20
	weightDocumentation      = 20
	weightLinkedIssues       = 10
)

var gapDescriptions = map[GapKind]string{
	GapAcceptanceCriteria: "No acceptance criteria defined",
	GapComponents:         "No components assigned",
	GapLabels:             "No labels assigned",
	GapMeetings:           "No related meetings found",
	GapDocumentation:      "No matching documentation found",
	GapLinkedIssues:       "No linked issues",
}

// Score computes the completeness score and gap list for a task. ticket
// may be nil when the primary source failed; all ticket-derived factors
// then count as absent. The computation is pure: identical inputs yield
// identical output.
func Score(ticket *source.TicketContext, contexts []source.Context) (float64, []Gap) {
	factors := []struct {
		kind    GapKind
		weight  int
		present bool
	}{
		{GapAcceptanceCriteria, weightAcceptanceCriteria, ticket != nil && ticket.Ticket.AcceptanceCriteria != ""},
		{GapComponents, weightComponents, ticket != nil && len(ticket.Ticket.Components) > 0},
		{GapLabels, weightLabels, ticket != nil && len(ticket.Ticket.Labels) > 0},
		{GapMeetings, weightMeetings, hasSourceText(contexts, source.TypeMeeting)},
		{GapDocumentation, weightDocumentation, hasSourceText(contexts, source.TypeDocumentation)},
		{GapLinkedIssues, weightLinkedIssues, ticket != nil && len(ticket.LinkedIssues) > 0},
	}

	var points int
	var gaps []Gap
	for _, f := range factors {
		if f.present {
			points += f.weight
			continue
		}
		gaps = append(gaps, Gap{Kind: f.kind, Description: gapDescriptions[f.kind]})
	}
	return float64(points) / 100, gaps
}

// hasSourceText reports whether any non-failed context of the given
// type carries synthesis-ready text.
func hasSourceText(contexts []source.Context, sourceType string) bool {
	for _, sc := range contexts {
		if sc.SourceType == sourceType && !sc.Failed() && sc.RawText != "" {
			return true
		}
	}
	return false
}

// Descriptions returns just the human-readable strings of gaps, in
// order. Storage keeps gaps in this flattened form.
func Descriptions(gaps []Gap) []string {
	if len(gaps) == 0 {
		return nil
	}
	out := make([]string, len(gaps))
	for i, g := range gaps {
		out[i] = g.Description
	}
	return out
}
