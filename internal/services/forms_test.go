package services

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
)

func newFormService(env *testEnv) *FormService {
	return NewFormService(env.repos, env.notify, env.mail, env.metrics, env.logger)
}

func newIntakeService(env *testEnv) *IntakeService {
	return NewIntakeService(env.repos, env.mail, env.metrics, "http://app.test/", env.logger)
}

func kycForm() *models.FormInput {
	return &models.FormInput{
		ServiceName:        "KYC Onboarding",
		ServiceDescription: "Identity checks for new clients",
		Fields:             []models.FormField{{Type: "text", Label: "Full name", Required: true}},
	}
}

func TestFormCRUDNotifiesAdmin(t *testing.T) {
	env := newTestEnv(t)
	svc := newFormService(env)
	admin := env.admin(t, "root")

	form, err := svc.Create(env.ctx, admin, kycForm())
	require.NoError(t, err)
	_, err = svc.Create(env.ctx, admin, kycForm())
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
	_, err = svc.Create(env.ctx, admin, &models.FormInput{ServiceName: "Empty"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	updated, err := svc.Update(env.ctx, admin, form.ID, &models.FormInput{ServiceDescription: "Updated"})
	require.NoError(t, err)
	assert.Equal(t, "KYC Onboarding", updated.ServiceName)
	assert.Equal(t, "Updated", updated.ServiceDescription)
	assert.Len(t, updated.Fields, 1)

	preview, err := svc.Preview(env.ctx, "KYC Onboarding")
	require.NoError(t, err)
	assert.Equal(t, form.ID, preview.ID)

	names, err := svc.ServiceNames(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"KYC Onboarding"}, names)

	_, err = svc.Delete(env.ctx, admin, form.ID)
	require.NoError(t, err)
	_, err = svc.Get(env.ctx, form.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	assert.Len(t, env.notifications(t, admin.ID), 3)
}

func TestSendWithDetailsLinksServiceOnce(t *testing.T) {
	env := newTestEnv(t)
	svc := newFormService(env)
	intake := newIntakeService(env)
	admin := env.admin(t, "root")
	ada := env.client(t, "Ada", "ada@example.com")

	form, err := svc.Create(env.ctx, admin, kycForm())
	require.NoError(t, err)
	req, err := intake.Create(env.ctx, &models.IntakeInput{
		ClientName:   "Ada",
		ClientEmail:  "ada@example.com",
		ClientNumber: "555-0100",
		ServiceName:  "KYC Onboarding",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, models.IntakePending, req.Status)

	send := &models.SendFormRequest{Email: "Ada@Example.com", ServiceName: "KYC Onboarding"}
	require.NoError(t, svc.SendWithDetails(env.ctx, send))
	require.NoError(t, svc.SendWithDetails(env.ctx, send))

	acct, err := env.repos.Accounts.Get(env.ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, form.ID, acct.Services[0])
	assert.Len(t, acct.Services, 1)

	stored, err := env.repos.Intakes.Get(env.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.IntakeActive, stored.Status)

	linked, err := svc.ServicesByEmail(env.ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "KYC Onboarding", linked[0].ServiceName)

	sent := env.mail.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "ada@example.com", sent[0].To)
	assert.Len(t, env.notifications(t, ada.ID), 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.EmailsSent.WithLabelValues("sent")))
}

func TestSendWithDetailsMissingIntakeKeepsLink(t *testing.T) {
	env := newTestEnv(t)
	svc := newFormService(env)
	admin := env.admin(t, "root")
	ada := env.client(t, "Ada", "ada@example.com")
	_, err := svc.Create(env.ctx, admin, kycForm())
	require.NoError(t, err)

	err = svc.SendWithDetails(env.ctx, &models.SendFormRequest{Email: "ada@example.com", ServiceName: "KYC Onboarding"})
	require.True(t, apperr.IsKind(err, apperr.KindNotFound))

	acct, err := env.repos.Accounts.Get(env.ctx, ada.ID)
	require.NoError(t, err)
	assert.Len(t, acct.Services, 1)
	assert.Empty(t, env.mail.Sent())
}

func TestSendWithDetailsMailFailure(t *testing.T) {
	env := newTestEnv(t)
	svc := newFormService(env)
	intake := newIntakeService(env)
	admin := env.admin(t, "root")
	ada := env.client(t, "Ada", "ada@example.com")
	_, err := svc.Create(env.ctx, admin, kycForm())
	require.NoError(t, err)
	_, err = intake.Create(env.ctx, &models.IntakeInput{
		ClientName: "Ada", ClientEmail: "ada@example.com", ClientNumber: "555-0100", ServiceName: "KYC Onboarding",
	}, true)
	require.NoError(t, err)

	env.mail.FailWith(errors.New("relay down"))
	err = svc.SendWithDetails(env.ctx, &models.SendFormRequest{Email: "ada@example.com", ServiceName: "KYC Onboarding"})
	require.True(t, apperr.IsKind(err, apperr.KindDependency))

	acct, err := env.repos.Accounts.Get(env.ctx, ada.ID)
	require.NoError(t, err)
	assert.Len(t, acct.Services, 1)
	assert.Len(t, env.notifications(t, ada.ID), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.EmailsSent.WithLabelValues("failed")))
}

func TestSendWithDetailsUnknownTargets(t *testing.T) {
	env := newTestEnv(t)
	svc := newFormService(env)
	admin := env.admin(t, "root")
	_, err := svc.Create(env.ctx, admin, kycForm())
	require.NoError(t, err)

	err = svc.SendWithDetails(env.ctx, &models.SendFormRequest{Email: "ghost@example.com", ServiceName: "KYC Onboarding"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	err = svc.SendWithDetails(env.ctx, &models.SendFormRequest{Email: "ghost@example.com", ServiceName: "Payroll"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	err = svc.SendWithDetails(env.ctx, &models.SendFormRequest{ServiceName: "Payroll"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestIntakeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := newIntakeService(env)

	_, err := svc.Unregistered(env.ctx)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	walkIn, err := svc.Create(env.ctx, &models.IntakeInput{
		ClientName: "Bob", ClientEmail: "bob@example.com", ClientNumber: "555-0101", ServiceName: "Payroll",
	}, false)
	require.NoError(t, err)
	_, err = svc.Create(env.ctx, &models.IntakeInput{
		ClientName: "Bob", ClientEmail: "bob@example.com", ClientNumber: "555-0101", ServiceName: "Payroll", Status: "archived",
	}, false)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.Create(env.ctx, &models.IntakeInput{ClientName: "Bob"}, false)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	pending, err := svc.Unregistered(env.ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.False(t, pending[0].IsRegistered)

	_, err = svc.UpdateStatus(env.ctx, walkIn.ID, "archived")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	done, err := svc.UpdateStatus(env.ctx, walkIn.ID, models.IntakeCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.IntakeCompleted, done.Status)
	back, err := svc.UpdateStatus(env.ctx, walkIn.ID, models.IntakePending)
	require.NoError(t, err)
	assert.Equal(t, models.IntakePending, back.Status)

	require.NoError(t, svc.Delete(env.ctx, walkIn.ID))
	assert.True(t, apperr.IsKind(svc.Delete(env.ctx, walkIn.ID), apperr.KindNotFound))
}

func TestIntakeEmails(t *testing.T) {
	env := newTestEnv(t)
	svc := newIntakeService(env)
	req := &models.SendFormRequest{Email: "bob@example.com", ServiceName: "Tax Filing"}

	require.NoError(t, svc.SendFormInvitation(env.ctx, req))
	require.NoError(t, svc.SendWelcome(env.ctx, req))
	sent := env.mail.Sent()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[0].HTML, "http://app.test/form/Tax%20Filing")
	assert.Contains(t, sent[1].HTML, "http://app.test/login")

	assert.True(t, apperr.IsKind(svc.SendWelcome(env.ctx, &models.SendFormRequest{Email: "bob"}), apperr.KindValidation))

	env.mail.FailWith(errors.New("relay down"))
	assert.True(t, apperr.IsKind(svc.SendFormInvitation(env.ctx, req), apperr.KindDependency))
}
