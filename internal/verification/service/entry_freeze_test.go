package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	candidatemodels "verihire/internal/candidate/models"
	candidateservice "verihire/internal/candidate/service"
	candidatestore "verihire/internal/candidate/store"
	"verihire/internal/resume"
	"verihire/internal/verification/models"
	"verihire/internal/verification/service/mocks"
	"verihire/internal/verification/store"
	"verihire/internal/verification/token"
	"verihire/pkg/domain"
	txcontext "verihire/pkg/platform/tx"
	"verihire/pkg/requestcontext"
)

// editAfterFreeze runs an edit of the entry as soon as it has been handed to
// the issuing request, before the request is stored.
type editAfterFreeze struct {
	*candidateservice.Service
	edit func(ctx context.Context, entryID domain.EntryID)
}

func (r *editAfterFreeze) FreezeEntry(ctx context.Context, id domain.CandidateID, entryID domain.EntryID) (*candidatemodels.WorkHistoryEntry, error) {
	entry, err := r.Service.FreezeEntry(ctx, id, entryID)
	if err == nil {
		r.edit(ctx, entryID)
	}
	return entry, err
}

func TestEditDuringIssueLeavesReferencedEntryIntact(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	requests := store.NewInMemory()
	entries := candidatestore.NewInMemory()
	candidates := candidateservice.New(entries, txcontext.NewSharded[candidateservice.Store](entries), requests,
		candidateservice.WithParser(resume.NewParser(resume.WithClock(func() time.Time { return now }))),
	)
	ingested, err := candidates.Ingest(ctx, "cand-1",
		"John Doe\njohn@x.com\nEXPERIENCE\nGoogle - Software Engineer\n2020 - 2023", nil)
	require.NoError(t, err)
	require.Len(t, ingested.WorkHistory, 1)
	entryID := ingested.WorkHistory[0].ID

	reader := &editAfterFreeze{Service: candidates, edit: func(ctx context.Context, entryID domain.EntryID) {
		_, err := candidates.EditEntry(ctx, "cand-1", entryID, candidatemodels.WorkHistoryUpdate{
			Company: "Google", Position: "VP of Engineering", StartDate: "2020", EndDate: "2023",
		})
		require.NoError(t, err)
	}}

	ctrl := gomock.NewController(t)
	messenger := mocks.NewMockMessenger(ctrl)
	messenger.EXPECT().Send(gomock.Any(), gomock.Any()).Return("msg-1", nil)
	signer := token.NewSigner("test-secret", "verihire", tokenTTL, token.WithClock(func() time.Time { return now }))
	svc := New(requests, txcontext.NewSharded[Store](requests), reader, signer, mocks.NewMockIdentityVerifier(ctrl), messenger)

	res, err := svc.Issue(ctx, "cand-1", models.IssueItem{EntryID: entryID.String(), EmployerEmail: "hr@google.com"})
	require.NoError(t, err)
	vid, err := domain.ParseVerificationID(res.VerificationID)
	require.NoError(t, err)

	req, err := requests.FindRequest(ctx, vid)
	require.NoError(t, err)
	assert.Equal(t, entryID, req.EntryID)
	assert.Equal(t, "Software Engineer", req.Position)

	referenced, err := candidates.FindEntry(ctx, "cand-1", entryID)
	require.NoError(t, err)
	assert.Equal(t, req.Position, referenced.Position, "referenced entry keeps the snapshot's content")
	assert.False(t, referenced.Active(), "the edit went to a successor")

	profile, err := candidates.Profile(ctx, "cand-1")
	require.NoError(t, err)
	require.Len(t, profile.WorkHistory, 1)
	assert.Equal(t, "VP of Engineering", profile.WorkHistory[0].Position)
	assert.False(t, profile.WorkHistory[0].Frozen())
}
