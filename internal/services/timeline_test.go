package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
)

func pendingDoc() *models.Document {
	return &models.Document{
		Status:         models.OutcomePending,
		TimelineStatus: models.StageCollecting,
		Corrections:    []string{},
	}
}

func TestAdvanceStageWalksPipelineInOrder(t *testing.T) {
	doc := pendingDoc()
	var seen []models.Stage
	for doc.TimelineStatus != models.StageDone {
		require.NoError(t, AdvanceStage(doc, doc.TimelineStatus))
		seen = append(seen, doc.TimelineStatus)
	}
	assert.Equal(t, []models.Stage{models.StageScreening, models.StageProcessing, models.StageDone}, seen)
	assert.Equal(t, models.OutcomePending, doc.Status, "reaching Done must not change the outcome")
}

func TestAdvanceStageRequiresMatchingStage(t *testing.T) {
	for _, actor := range []models.Stage{"", models.StageScreening, models.StageProcessing, models.StageDone} {
		doc := pendingDoc()
		err := AdvanceStage(doc, actor)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindForbidden), "actor %q", actor)
		assert.Equal(t, models.StageCollecting, doc.TimelineStatus)
	}
}

func TestAdvanceStageAtDoneIsTerminal(t *testing.T) {
	doc := pendingDoc()
	doc.TimelineStatus = models.StageDone
	err := AdvanceStage(doc, models.StageDone)
	assert.True(t, apperr.IsKind(err, apperr.KindTerminal))
	assert.Equal(t, models.StageDone, doc.TimelineStatus)
}

func TestApplyOutcomeVerified(t *testing.T) {
	doc := pendingDoc()
	require.NoError(t, ApplyOutcome(doc, &models.VerifyRequest{Status: "Verified"}))
	assert.Equal(t, models.OutcomeVerified, doc.Status)
	assert.True(t, doc.IsVerified)
	assert.Equal(t, "Your document has been successfully verified.", OutcomeMessage(doc))

	err := ApplyOutcome(doc, &models.VerifyRequest{Status: "Verified"})
	assert.True(t, apperr.IsKind(err, apperr.KindTerminal))
}

func TestApplyOutcomeRejectRequiresPayload(t *testing.T) {
	cases := []*models.VerifyRequest{
		{Status: "Rejected"},
		{Status: "Rejected", RejectionReason: "blurry"},
		{Status: "Rejected", RejectionReason: "blurry", Corrections: []string{" ", ""}},
		{Status: "Rejected", Corrections: []string{"email"}},
	}
	for _, req := range cases {
		doc := pendingDoc()
		err := ApplyOutcome(doc, req)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		assert.Equal(t, models.OutcomePending, doc.Status)
		assert.False(t, doc.IsVerified)
	}
}

func TestApplyOutcomeRejectsUnknownStatus(t *testing.T) {
	doc := pendingDoc()
	err := ApplyOutcome(doc, &models.VerifyRequest{Status: "Corrected"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, models.OutcomePending, doc.Status)
}

func TestRejectThenCorrect(t *testing.T) {
	doc := pendingDoc()
	doc.FormData.Email = "old@example.com"

	require.NoError(t, ApplyOutcome(doc, &models.VerifyRequest{
		Status:          "Rejected",
		RejectionReason: "Email bounced",
		Corrections:     []string{"email"},
	}))
	assert.Equal(t, models.OutcomeRejected, doc.Status)
	assert.Equal(t, []string{"email"}, doc.Corrections)
	assert.Equal(t, "Your document has been rejected. Reason: Email bounced", OutcomeMessage(doc))

	err := ApplyOutcome(doc, &models.VerifyRequest{Status: "Verified"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict), "a rejected document waits for the client")

	require.NoError(t, ApplyCorrections(doc, models.FormData{Email: "x@y.com"}))
	assert.Equal(t, models.OutcomeCorrected, doc.Status)
	assert.Equal(t, []string{}, doc.Corrections)
	assert.Equal(t, models.AdminRemarks{}, doc.AdminRemarks)
	assert.Equal(t, "x@y.com", doc.FormData.Email)
	assert.NotContains(t, doc.MissingFields, "email")
	assert.False(t, doc.IsVerified)
}

func TestApplyCorrectionsRequiresRejected(t *testing.T) {
	for _, status := range []models.OutcomeStatus{models.OutcomePending, models.OutcomeCorrected, models.OutcomeVerified} {
		doc := pendingDoc()
		doc.Status = status
		err := ApplyCorrections(doc, models.FormData{Email: "x@y.com"})
		assert.True(t, apperr.IsKind(err, apperr.KindConflict), "status %s", status)
		assert.Equal(t, status, doc.Status)
	}
}

func TestCorrectedCanStillBeDecided(t *testing.T) {
	doc := pendingDoc()
	doc.Status = models.OutcomeCorrected
	require.NoError(t, ApplyOutcome(doc, &models.VerifyRequest{Status: "Verified"}))
	assert.True(t, doc.IsVerified)
}

func TestIsVerifiedMirrorsStatus(t *testing.T) {
	doc := pendingDoc()
	steps := []func() error{
		func() error {
			return ApplyOutcome(doc, &models.VerifyRequest{Status: "Rejected", RejectionReason: "r", Corrections: []string{"phone"}})
		},
		func() error { return ApplyCorrections(doc, models.FormData{Phone: "123"}) },
		func() error { return ApplyOutcome(doc, &models.VerifyRequest{Status: "Verified"}) },
	}
	for _, step := range steps {
		require.NoError(t, step())
		assert.Equal(t, doc.Status == models.OutcomeVerified, doc.IsVerified)
	}
}
