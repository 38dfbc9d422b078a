package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campusops/ta-scheduler-api/internal/dto"
)

type rosterManagerMock struct {
	name      string
	staffData string
	uploadErr error
	deletedID string
}

func (m *rosterManagerMock) Upload(_ context.Context, name string, staffFile, _, _ io.Reader) (*dto.RosterResponse, error) {
	m.name = name
	data, err := io.ReadAll(staffFile)
	if err != nil {
		return nil, err
	}
	m.staffData = string(data)
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return &dto.RosterResponse{ID: "roster-1", Name: name, StaffCount: 2}, nil
}

func (m *rosterManagerMock) Get(_ context.Context, id string) (*dto.RosterResponse, error) {
	return &dto.RosterResponse{ID: id}, nil
}

func (m *rosterManagerMock) List(_ context.Context) ([]dto.RosterResponse, error) {
	return []dto.RosterResponse{{ID: "roster-1"}, {ID: "roster-2"}}, nil
}

func (m *rosterManagerMock) Delete(_ context.Context, id string) error {
	m.deletedID = id
	return nil
}

func multipartUpload(t *testing.T, fields map[string]string, files map[string]string) (*http.Request, error) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for field, content := range files {
		part, err := writer.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, "/rosters", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}

func TestRosterHandlerUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &rosterManagerMock{}
	handler := &RosterHandler{service: mockSvc}

	req, err := multipartUpload(t,
		map[string]string{"name": "Fall 2026"},
		map[string]string{
			rosterFileField:       "TA,Hired for\nAda,10\n",
			responsesFileField:    "Name,Busy [9am to 10am]\nAda,\n",
			requirementsFileField: "Lab Section,Day,Start,End,Required\nPhysics 101,Monday,9am,10am,1\n",
		},
	)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "Fall 2026", mockSvc.name)
	require.Equal(t, "TA,Hired for\nAda,10\n", mockSvc.staffData)
}

func TestRosterHandlerUploadMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &RosterHandler{service: &rosterManagerMock{}}

	req, err := multipartUpload(t,
		map[string]string{"name": "Fall 2026"},
		map[string]string{rosterFileField: "TA,Hired for\nAda,10\n"},
	)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Upload(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRosterHandlerListAndDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &rosterManagerMock{}
	handler := &RosterHandler{service: mockSvc}

	// Delete replies with a bare status, which only reaches the recorder
	// through a real router.
	router := gin.New()
	router.GET("/rosters", handler.List)
	router.DELETE("/rosters/:id", handler.Delete)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/rosters", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodDelete, "/rosters/roster-1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "roster-1", mockSvc.deletedID)
}
