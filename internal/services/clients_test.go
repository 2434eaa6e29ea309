package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
)

func TestClientListings(t *testing.T) {
	env := newTestEnv(t)
	svc := NewClientService(env.repos, env.notify, env.logger)
	admin := env.admin(t, "root")
	op := env.operator(t, "screener", models.StageScreening)
	ada := env.client(t, "Ada", "ada@example.com")

	clients, err := svc.AllClients(env.ctx)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, ada.ID, clients[0].ID)

	staff, err := svc.Staff(env.ctx)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, a := range staff {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []uuid.UUID{admin.ID, op.ID}, ids)

	got, err := svc.Details(env.ctx, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	_, err = svc.Details(env.ctx, admin.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	linked, err := svc.Services(env.ctx, ada)
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestDeleteOnlyRemovesClients(t *testing.T) {
	env := newTestEnv(t)
	svc := NewClientService(env.repos, env.notify, env.logger)
	admin := env.admin(t, "root")
	ada := env.client(t, "Ada", "ada@example.com")

	assert.True(t, apperr.IsKind(svc.Delete(env.ctx, admin, admin.ID), apperr.KindValidation))
	require.NoError(t, svc.Delete(env.ctx, admin, ada.ID))
	assert.True(t, apperr.IsKind(svc.Delete(env.ctx, admin, ada.ID), apperr.KindNotFound))

	notes := env.notifications(t, admin.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Client Ada has been deleted successfully.", notes[0].Message)
}

func TestDeletedClientKeepsDocuments(t *testing.T) {
	env := newTestEnv(t)
	svc := NewClientService(env.repos, env.notify, env.logger)
	docs := NewDocumentService(env.repos, env.files, env.notify, env.metrics, env.logger)
	admin := env.admin(t, "root")
	ada := env.client(t, "Ada", "ada@example.com")

	doc, err := docs.Create(env.ctx, ada, &models.NewDocument{}, &Upload{
		File: strings.NewReader("%PDF-1.4"), FileName: "id.pdf", ContentType: "application/pdf",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(env.ctx, admin, ada.ID))

	queue, err := docs.ListForOperator(env.ctx, admin)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, doc.ID, queue[0].ID)

	kept, err := docs.ClientDocuments(env.ctx, admin, ada.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	key, ok := env.files.KeyFromURL(doc.FormData.DocumentAttach)
	require.True(t, ok)
	_, err = os.Stat(filepath.Join(env.files.Dir(), key))
	assert.NoError(t, err)
}

func TestUpdateStatusNotifiesFirstAdmin(t *testing.T) {
	env := newTestEnv(t)
	svc := NewClientService(env.repos, env.notify, env.logger)
	first := env.admin(t, "root")
	second := env.admin(t, "deputy")
	ada := env.client(t, "Ada", "ada@example.com")

	_, err := svc.UpdateStatus(env.ctx, ada.ID, "Banned")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	_, err = svc.UpdateStatus(env.ctx, uuid.New(), models.StatusSuspended)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	acct, err := svc.UpdateStatus(env.ctx, ada.ID, models.StatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuspended, acct.Status)

	notes := env.notifications(t, first.ID)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, `status updated to "Suspended"`)
	assert.Empty(t, env.notifications(t, second.ID))
}
