package services

import (
	"fmt"
	"strings"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
)

// nextStage is the only legal forward move from each stage
var nextStage = map[models.Stage]models.Stage{
	models.StageCollecting: models.StageScreening,
	models.StageScreening:  models.StageProcessing,
	models.StageProcessing: models.StageDone,
}

// AdvanceStage moves doc one stage forward on behalf of an operator that owns
// actorStage. Ownership is checked before the terminal check, so a mismatched
// operator is always Forbidden. The outcome status is never touched.
func AdvanceStage(doc *models.Document, actorStage models.Stage) error {
	if actorStage == "" || actorStage != doc.TimelineStatus {
		return apperr.Forbidden(fmt.Sprintf("Operators of stage %q cannot move a document in stage %q", actorStage, doc.TimelineStatus))
	}
	if doc.TimelineStatus == models.StageDone {
		return apperr.Terminal("Document is already in the final stage.")
	}
	next, ok := nextStage[doc.TimelineStatus]
	if !ok {
		return apperr.Internal("advance document", nil)
	}
	doc.TimelineStatus = next
	return nil
}

// ApplyOutcome validates req and applies a Verified or Rejected outcome to doc.
// doc is left untouched when an error is returned.
func ApplyOutcome(doc *models.Document, req *models.VerifyRequest) error {
	status := models.OutcomeStatus(strings.TrimSpace(req.Status))
	switch status {
	case models.OutcomeVerified, models.OutcomeRejected:
	default:
		return apperr.Validation("Invalid status. Only 'Verified' and 'Rejected' are supported.")
	}

	var corrections []string
	if status == models.OutcomeRejected {
		reason := strings.TrimSpace(req.RejectionReason)
		corrections = cleanFieldNames(req.Corrections)
		if reason == "" || len(corrections) == 0 {
			return apperr.Validation("Rejection reason and a list of corrections are required for rejection.")
		}
	}

	switch doc.Status {
	case models.OutcomePending, models.OutcomeCorrected:
	case models.OutcomeVerified:
		return apperr.Terminal("Document is already verified")
	default:
		return apperr.Conflict("Document is awaiting corrections from the client")
	}

	if status == models.OutcomeVerified {
		doc.Status = models.OutcomeVerified
		doc.IsVerified = true
		doc.AdminRemarks = models.AdminRemarks{}
		doc.Corrections = []string{}
		return nil
	}

	doc.Status = models.OutcomeRejected
	doc.IsVerified = false
	doc.AdminRemarks = models.AdminRemarks{
		RejectionReason: strings.TrimSpace(req.RejectionReason),
		Description:     strings.TrimSpace(req.Description),
	}
	doc.Corrections = corrections
	return nil
}

// ApplyCorrections merges a client's patch into a Rejected document and marks
// it Corrected. Corrected is not sent back for review automatically.
func ApplyCorrections(doc *models.Document, patch models.FormData) error {
	if doc.Status != models.OutcomeRejected {
		return apperr.Conflict("Only rejected documents accept corrections")
	}
	doc.FormData = doc.FormData.Merge(patch)
	doc.Status = models.OutcomeCorrected
	doc.IsVerified = false
	doc.AdminRemarks = models.AdminRemarks{}
	doc.Corrections = []string{}
	doc.MissingFields = doc.FormData.Missing()
	return nil
}

// OutcomeMessage is the client-facing notification text for an applied outcome
func OutcomeMessage(doc *models.Document) string {
	if doc.Status == models.OutcomeVerified {
		return "Your document has been successfully verified."
	}
	return "Your document has been rejected. Reason: " + doc.AdminRemarks.RejectionReason
}

func cleanFieldNames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, f := range in {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
