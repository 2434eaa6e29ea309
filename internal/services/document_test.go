package services

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/models"
)

type DocumentServiceSuite struct {
	suite.Suite
	env    *testEnv
	svc    *DocumentService
	admin  *models.Account
	client *models.Account
}

func TestDocumentServiceSuite(t *testing.T) {
	suite.Run(t, new(DocumentServiceSuite))
}

func (s *DocumentServiceSuite) SetupTest() {
	s.env = newTestEnv(s.T())
	s.svc = NewDocumentService(s.env.repos, s.env.files, s.env.notify, s.env.metrics, s.env.logger)
	s.admin = s.env.admin(s.T(), "root")
	s.client = s.env.client(s.T(), "Ada", "ada@example.com")
	s.svc.now = tickingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func (s *DocumentServiceSuite) create(fd models.FormData) *models.Document {
	doc, err := s.svc.Create(s.env.ctx, s.client, &models.NewDocument{FormData: fd}, nil)
	s.Require().NoError(err)
	return doc
}

func (s *DocumentServiceSuite) TestCreateHashesSecretAndStoresAttachment() {
	doc, err := s.svc.Create(s.env.ctx, s.client, &models.NewDocument{
		FormData: models.FormData{Email: "ada@example.com", Password: "hunter2"},
	}, &Upload{File: strings.NewReader("%PDF-1.4"), FileName: "Passport.PDF", ContentType: "application/pdf"})
	s.Require().NoError(err)

	s.Equal(s.client.ID, doc.ClientID)
	s.Equal(models.OutcomePending, doc.Status)
	s.Equal(models.StageCollecting, doc.TimelineStatus)
	s.Equal(int64(1), doc.Version)
	s.NotEqual("hunter2", doc.FormData.Password)
	s.True(secretMatches(doc.FormData.Password, "hunter2"))
	s.NotContains(doc.MissingFields, "email")
	s.NotContains(doc.MissingFields, "documentAttach")
	s.Contains(doc.MissingFields, "phone")

	s.True(strings.HasPrefix(doc.FormData.DocumentAttach, "/uploads/documents/"))
	s.True(strings.HasSuffix(doc.FormData.DocumentAttach, ".pdf"))
	key, ok := s.env.files.KeyFromURL(doc.FormData.DocumentAttach)
	s.Require().True(ok)
	_, err = os.Stat(filepath.Join(s.env.files.Dir(), key))
	s.NoError(err)
}

func (s *DocumentServiceSuite) TestCreateRejectsUnknownService() {
	missing := uuid.New()
	_, err := s.svc.Create(s.env.ctx, s.client, &models.NewDocument{ServiceID: &missing}, nil)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
}

func (s *DocumentServiceSuite) TestListForOperator() {
	first := s.create(models.FormData{Name: "one"})
	second := s.create(models.FormData{Name: "two"})

	collector := s.env.operator(s.T(), "collector", models.StageCollecting)
	_, err := s.svc.Advance(s.env.ctx, collector, first.ID)
	s.Require().NoError(err)

	all, err := s.svc.ListForOperator(s.env.ctx, s.admin)
	s.Require().NoError(err)
	s.Len(all, 2)

	queue, err := s.svc.ListForOperator(s.env.ctx, collector)
	s.Require().NoError(err)
	s.Require().Len(queue, 1)
	s.Equal(second.ID, queue[0].ID)

	screener := s.env.operator(s.T(), "screener", models.StageScreening)
	queue, err = s.svc.ListForOperator(s.env.ctx, screener)
	s.Require().NoError(err)
	s.Require().Len(queue, 1)
	s.Equal(first.ID, queue[0].ID)

	_, err = s.svc.ListForOperator(s.env.ctx, s.client)
	s.True(apperr.IsKind(err, apperr.KindForbidden))
}

func (s *DocumentServiceSuite) TestAdvanceIsGatedByStageNotAdminRole() {
	doc := s.create(models.FormData{})

	_, err := s.svc.Advance(s.env.ctx, s.admin, doc.ID)
	s.True(apperr.IsKind(err, apperr.KindForbidden), "admin bypass applies to listing only")

	ops := map[models.Stage]*models.Account{}
	for _, st := range []models.Stage{models.StageCollecting, models.StageScreening, models.StageProcessing, models.StageDone} {
		ops[st] = s.env.operator(s.T(), "op-"+string(st), st)
	}
	for _, want := range []models.Stage{models.StageScreening, models.StageProcessing, models.StageDone} {
		current, err := s.svc.Get(s.env.ctx, s.admin, doc.ID)
		s.Require().NoError(err)
		moved, err := s.svc.Advance(s.env.ctx, ops[current.TimelineStatus], doc.ID)
		s.Require().NoError(err)
		s.Equal(want, moved.TimelineStatus)
	}

	_, err = s.svc.Advance(s.env.ctx, ops[models.StageDone], doc.ID)
	s.True(apperr.IsKind(err, apperr.KindTerminal))

	notes := s.env.notifications(s.T(), s.client.ID)
	s.Len(notes, 3)
	s.Equal("Your document has moved to the Done stage.", notes[0].Message)
	s.Equal(float64(1), testutil.ToFloat64(s.env.metrics.StageTransitions.WithLabelValues("Done")))
}

func (s *DocumentServiceSuite) TestSetOutcomeNotifiesOwnerOnce() {
	doc := s.create(models.FormData{})

	updated, err := s.svc.SetOutcome(s.env.ctx, s.admin, doc.ID, &models.VerifyRequest{Status: "Verified"})
	s.Require().NoError(err)
	s.True(updated.IsVerified)

	notes := s.env.notifications(s.T(), s.client.ID)
	s.Require().Len(notes, 1)
	s.Equal("Your document has been successfully verified.", notes[0].Message)
	s.Require().NotNil(notes[0].DocumentID)
	s.Equal(doc.ID, *notes[0].DocumentID)
	s.Empty(s.env.notifications(s.T(), s.admin.ID))
	s.Equal(float64(1), testutil.ToFloat64(s.env.metrics.OutcomesSet.WithLabelValues("Verified")))
}

func (s *DocumentServiceSuite) TestRejectWithoutCorrectionsChangesNothing() {
	doc := s.create(models.FormData{})

	_, err := s.svc.SetOutcome(s.env.ctx, s.admin, doc.ID, &models.VerifyRequest{Status: "Rejected", RejectionReason: "bad"})
	s.True(apperr.IsKind(err, apperr.KindValidation))

	stored, err := s.svc.Get(s.env.ctx, s.admin, doc.ID)
	s.Require().NoError(err)
	s.Equal(models.OutcomePending, stored.Status)
	s.Equal(doc.Version, stored.Version)
	s.Empty(s.env.notifications(s.T(), s.client.ID))
}

func (s *DocumentServiceSuite) TestClientsCannotSetOutcome() {
	doc := s.create(models.FormData{})
	_, err := s.svc.SetOutcome(s.env.ctx, s.client, doc.ID, &models.VerifyRequest{Status: "Verified"})
	s.True(apperr.IsKind(err, apperr.KindForbidden))
}

func (s *DocumentServiceSuite) TestRejectThenCorrect() {
	doc := s.create(models.FormData{Email: "wrong"})

	rejected, err := s.svc.SetOutcome(s.env.ctx, s.admin, doc.ID, &models.VerifyRequest{
		Status: "Rejected", RejectionReason: "Email invalid", Corrections: []string{"email"},
	})
	s.Require().NoError(err)
	s.Equal([]string{"email"}, rejected.Corrections)

	other := s.env.client(s.T(), "Eve", "eve@example.com")
	_, err = s.svc.SubmitCorrections(s.env.ctx, other, doc.ID, models.FormData{Email: "x@y.com"}, nil)
	s.True(apperr.IsKind(err, apperr.KindForbidden))

	corrected, err := s.svc.SubmitCorrections(s.env.ctx, s.client, doc.ID, models.FormData{Email: "x@y.com", Password: "pw"}, nil)
	s.Require().NoError(err)
	s.Equal(models.OutcomeCorrected, corrected.Status)
	s.Equal([]string{}, corrected.Corrections)
	s.Equal(models.AdminRemarks{}, corrected.AdminRemarks)
	s.Equal("x@y.com", corrected.FormData.Email)
	s.True(secretMatches(corrected.FormData.Password, "pw"))

	_, err = s.svc.SubmitCorrections(s.env.ctx, s.client, doc.ID, models.FormData{Email: "again@y.com"}, nil)
	s.True(apperr.IsKind(err, apperr.KindConflict))

	notes := s.env.notifications(s.T(), s.client.ID)
	s.Require().Len(notes, 1)
	s.Equal("Your document has been rejected. Reason: Email invalid", notes[0].Message)
}

func (s *DocumentServiceSuite) reject(doc *models.Document) {
	_, err := s.svc.SetOutcome(s.env.ctx, s.admin, doc.ID, &models.VerifyRequest{Status: "Rejected", RejectionReason: "unreadable"})
	s.Require().NoError(err)
}

func (s *DocumentServiceSuite) storedFileExists(url string) bool {
	key, ok := s.env.files.KeyFromURL(url)
	s.Require().True(ok)
	_, err := os.Stat(filepath.Join(s.env.files.Dir(), key))
	return err == nil
}

func (s *DocumentServiceSuite) TestCorrectionsIgnoreAttachmentURL() {
	owned, err := s.svc.Create(s.env.ctx, s.client, &models.NewDocument{}, &Upload{
		File: strings.NewReader("%PDF-1.4"), FileName: "id.pdf", ContentType: "application/pdf",
	})
	s.Require().NoError(err)

	eve := s.env.client(s.T(), "Eve", "eve@example.com")
	theirs, err := s.svc.Create(s.env.ctx, eve, &models.NewDocument{}, nil)
	s.Require().NoError(err)
	s.reject(theirs)

	corrected, err := s.svc.SubmitCorrections(s.env.ctx, eve, theirs.ID,
		models.FormData{Name: "Eve", DocumentAttach: owned.FormData.DocumentAttach}, nil)
	s.Require().NoError(err)
	s.Empty(corrected.FormData.DocumentAttach)
	s.Contains(corrected.MissingFields, "documentAttach")

	s.Require().NoError(s.svc.Delete(s.env.ctx, s.admin, theirs.ID))
	s.True(s.storedFileExists(owned.FormData.DocumentAttach))

	stored, err := s.svc.Get(s.env.ctx, s.admin, owned.ID)
	s.Require().NoError(err)
	s.Equal(owned.FormData.DocumentAttach, stored.FormData.DocumentAttach)
}

func (s *DocumentServiceSuite) TestCorrectionsReplaceUploadedAttachment() {
	doc, err := s.svc.Create(s.env.ctx, s.client, &models.NewDocument{}, &Upload{
		File: strings.NewReader("old"), FileName: "old.png", ContentType: "image/png",
	})
	s.Require().NoError(err)
	s.reject(doc)

	corrected, err := s.svc.SubmitCorrections(s.env.ctx, s.client, doc.ID, models.FormData{}, &Upload{
		File: strings.NewReader("new"), FileName: "new.jpg", ContentType: "image/jpeg",
	})
	s.Require().NoError(err)
	s.NotEqual(doc.FormData.DocumentAttach, corrected.FormData.DocumentAttach)
	s.True(strings.HasSuffix(corrected.FormData.DocumentAttach, ".jpg"))
	s.True(s.storedFileExists(corrected.FormData.DocumentAttach))
	s.False(s.storedFileExists(doc.FormData.DocumentAttach))

	// a second submission is refused and its upload is not kept
	before, err := os.ReadDir(filepath.Join(s.env.files.Dir(), "documents"))
	s.Require().NoError(err)
	_, err = s.svc.SubmitCorrections(s.env.ctx, s.client, doc.ID, models.FormData{}, &Upload{
		File: strings.NewReader("again"), FileName: "again.jpg", ContentType: "image/jpeg",
	})
	s.True(apperr.IsKind(err, apperr.KindConflict))
	after, err := os.ReadDir(filepath.Join(s.env.files.Dir(), "documents"))
	s.Require().NoError(err)
	s.Len(after, len(before))
}

func (s *DocumentServiceSuite) TestConcurrentOutcomesHaveOneWinner() {
	doc := s.create(models.FormData{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.SetOutcome(s.env.ctx, s.admin, doc.ID, &models.VerifyRequest{Status: "Verified"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.IsKind(err, apperr.KindConflict), apperr.IsKind(err, apperr.KindTerminal):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, wins)
	s.Equal(9, conflicts)
	s.Len(s.env.notifications(s.T(), s.client.ID), 1)
}

func (s *DocumentServiceSuite) TestClientDocumentsScope() {
	s.create(models.FormData{})
	other := s.env.client(s.T(), "Eve", "eve@example.com")

	docs, err := s.svc.ClientDocuments(s.env.ctx, s.admin, s.client.ID)
	s.Require().NoError(err)
	s.Len(docs, 1)

	_, err = s.svc.ClientDocuments(s.env.ctx, other, s.client.ID)
	s.True(apperr.IsKind(err, apperr.KindForbidden))

	_, err = s.svc.ClientDocuments(s.env.ctx, other, other.ID)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
}

func (s *DocumentServiceSuite) TestTimelineNamesServices() {
	form := &models.Form{ID: uuid.New(), ServiceName: "Company Formation", CreatedAt: time.Now()}
	s.Require().NoError(s.env.repos.Forms.Create(s.env.ctx, form))

	_, err := s.svc.Create(s.env.ctx, s.client, &models.NewDocument{ServiceID: &form.ID}, nil)
	s.Require().NoError(err)
	s.create(models.FormData{})

	entries, err := s.svc.Timeline(s.env.ctx, s.client)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("No Service Name", entries[0].ServiceName)
	s.Equal("Company Formation", entries[1].ServiceName)
}

func (s *DocumentServiceSuite) TestRenewalDue() {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { return now }
	yes, no := true, false

	anniversary := time.Date(2020, 9, 15, 0, 0, 0, 0, time.UTC)
	dated := s.create(models.FormData{RenewalPreferences: &yes, Date: &anniversary})
	undated := s.create(models.FormData{RenewalPreferences: &yes})
	optedOut := s.create(models.FormData{RenewalPreferences: &no})
	pending := s.create(models.FormData{RenewalPreferences: &yes})

	for _, d := range []*models.Document{undated, dated, optedOut} {
		_, err := s.svc.SetOutcome(s.env.ctx, s.admin, d.ID, &models.VerifyRequest{Status: "Verified"})
		s.Require().NoError(err)
	}

	due, err := s.svc.RenewalDue(s.env.ctx)
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal(dated.ID, due[0].ID)
	s.Equal(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC), due[0].NextRenewalDate)
	s.Equal("Ada", due[0].ClientName)
	s.Equal("ada@example.com", due[0].ClientEmail)
	s.Equal(undated.ID, due[1].ID)
	s.Equal(now.AddDate(1, 0, 0), due[1].NextRenewalDate, "falls back to the creation date")
	for _, d := range due {
		s.NotEqual(pending.ID, d.ID)
	}
}

func (s *DocumentServiceSuite) TestDeleteRemovesAttachmentAndNotifiesAdmin() {
	doc, err := s.svc.Create(s.env.ctx, s.client, &models.NewDocument{},
		&Upload{File: strings.NewReader("img"), FileName: "scan.png", ContentType: "image/png"})
	s.Require().NoError(err)
	key, ok := s.env.files.KeyFromURL(doc.FormData.DocumentAttach)
	s.Require().True(ok)

	s.Require().NoError(s.svc.Delete(s.env.ctx, s.admin, doc.ID))

	_, err = os.Stat(filepath.Join(s.env.files.Dir(), key))
	s.True(os.IsNotExist(err))
	_, err = s.svc.Get(s.env.ctx, s.admin, doc.ID)
	s.True(apperr.IsKind(err, apperr.KindNotFound))

	notes := s.env.notifications(s.T(), s.admin.ID)
	s.Require().Len(notes, 1)
	s.Contains(notes[0].Message, doc.ID.String())
}

func TestGetHidesOtherClientsDocuments(t *testing.T) {
	env := newTestEnv(t)
	svc := NewDocumentService(env.repos, env.files, env.notify, env.metrics, env.logger)
	owner := env.client(t, "Ada", "ada@example.com")
	other := env.client(t, "Eve", "eve@example.com")

	doc, err := svc.Create(env.ctx, owner, &models.NewDocument{}, nil)
	require.NoError(t, err)

	_, err = svc.Get(env.ctx, other, doc.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindForbidden))
	got, err := svc.Get(env.ctx, owner, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
}
