package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verihire/internal/candidate/models"
	"verihire/internal/candidate/service"
	"verihire/internal/candidate/store"
	"verihire/pkg/domain"
	txcontext "verihire/pkg/platform/tx"
	"verihire/pkg/testutil"
)

type noRequests struct{}

func (noRequests) CountByEntry(context.Context, domain.CandidateID, domain.EntryID) (int, error) {
	return 0, nil
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	st := store.NewInMemory()
	svc := service.New(st, txcontext.NewSharded[service.Store](st), noRequests{})
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestIngestJSON(t *testing.T) {
	router := newRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/candidates/cand-1/resume", map[string]any{
		"text": "John Doe\njohn@x.com\nEXPERIENCE\nGoogle - Software Engineer\n2020 - 2023",
	})
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := testutil.UnmarshalResponse[models.IngestResult](t, rr)
	assert.True(t, body.Created)
	require.Len(t, body.WorkHistory, 1)
	assert.Equal(t, "Google", body.WorkHistory[0].Company)
}

func TestIngestMultipartText(t *testing.T) {
	router := newRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("resume", "cv.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("Ada Lovelace\nEXPERIENCE\nLead Engineer at Babbage Ltd\n2019 - present"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/candidates/cand-2/resume", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := testutil.UnmarshalResponse[models.IngestResult](t, rr)
	assert.Equal(t, "Ada Lovelace", body.Candidate.Name)
	require.Len(t, body.WorkHistory, 1)
	assert.Equal(t, "Babbage Ltd", body.WorkHistory[0].Company)
	assert.Equal(t, "present", body.WorkHistory[0].EndDate)
}

func TestIngestValidation(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/candidates/cand-1/resume", map[string]any{"text": "  "}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/candidates/bad%20id/resume", map[string]any{"text": "x"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProfileAndEditNotFound(t *testing.T) {
	router := newRouter(t)

	rr := testutil.DoRequest(router, httptest.NewRequest(http.MethodGet, "/candidates/nobody", nil))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut,
		"/candidates/nobody/work-history/"+domain.NewEntryID().String(),
		map[string]any{"company": "A", "position": "B", "start_date": "2020", "end_date": "2021"}))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut,
		"/candidates/nobody/profiles", map[string]any{"github_url": "ftp://example.com"}))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
}
