package workflow

import (
	"fmt"

	"github.com/ak652231/TraceQ-sub001/internal/sighting/models"
	dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"
)

// lifecycle is the SightingReport state machine. edges lists, per target
// status, the statuses it may be reached from; terminal statuses admit no edge.
var lifecycle = struct {
	terminal map[models.ReportStatus]struct{}
	edges    map[models.ReportStatus]map[models.ReportStatus]struct{}
}{
	terminal: toSet(models.StatusSolved, models.StatusReject),
	edges: map[models.ReportStatus]map[models.ReportStatus]struct{}{
		// re-issuing Notified_Family is an idempotent re-apply
		models.StatusNotifiedFamily: toSet(models.StatusPending, models.StatusNotifiedFamily),
		models.StatusSentTeam:       toSet(models.StatusNotifiedFamily),
		models.StatusSolved:         toSet(models.StatusPending, models.StatusNotifiedFamily, models.StatusSentTeam),
		models.StatusReject:         toSet(models.StatusPending, models.StatusNotifiedFamily, models.StatusSentTeam),
	},
}

func toSet(values ...models.ReportStatus) map[models.ReportStatus]struct{} {
	set := make(map[models.ReportStatus]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to models.ReportStatus) bool {
	if _, ok := lifecycle.terminal[from]; ok {
		return false
	}
	sources, ok := lifecycle.edges[to]
	if !ok {
		return false
	}
	_, ok = sources[from]
	return ok
}

// checkTransition returns an InvalidState error naming the blocking status.
func checkTransition(from, to models.ReportStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if _, ok := lifecycle.terminal[from]; ok {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("report is already %s", from))
	}
	return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot move report from %s to %s", from, to))
}

// caseStatusAfter returns the MissingPerson status implied by a report
// reaching to, and false when the case is left unchanged.
func caseStatusAfter(to models.ReportStatus) (models.CaseStatus, bool) {
	switch to {
	case models.StatusSentTeam:
		return models.CaseStatusInvestigating, true
	case models.StatusSolved:
		return models.CaseStatusFound, true
	default:
		return "", false
	}
}
