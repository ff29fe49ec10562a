package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/uniplan/enrollment-api/internal/middleware"
	"github.com/uniplan/enrollment-api/internal/models"
	"github.com/uniplan/enrollment-api/internal/service"
)

type preferenceStoreMock struct {
	profile *models.PreferenceProfile
	saved   *models.PreferenceProfile
}

func (m *preferenceStoreMock) GetByUser(ctx context.Context, userID string) (*models.PreferenceProfile, error) {
	if m.profile == nil {
		return nil, sql.ErrNoRows
	}
	return m.profile, nil
}

func (m *preferenceStoreMock) Upsert(ctx context.Context, profile *models.PreferenceProfile) error {
	m.saved = profile
	return nil
}

func testContext(t *testing.T, method, target string, body []byte, claims *middleware.TokenClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestPreferenceHandlerGetRequiresAuth(t *testing.T) {
	handler := NewPreferenceHandler(service.NewPreferenceService(&preferenceStoreMock{}, nil, nil))
	c, w := testContext(t, http.MethodGet, "/preferences", nil, nil)

	handler.Get(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPreferenceHandlerGetReturnsProfile(t *testing.T) {
	store := &preferenceStoreMock{profile: &models.PreferenceProfile{UserID: "stu-1", PreferredShift: models.ShiftMorning}}
	handler := NewPreferenceHandler(service.NewPreferenceService(store, nil, nil))
	c, w := testContext(t, http.MethodGet, "/preferences", nil, &middleware.TokenClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "stu-1")
}

func TestPreferenceHandlerUpsert(t *testing.T) {
	store := &preferenceStoreMock{}
	handler := NewPreferenceHandler(service.NewPreferenceService(store, nil, nil))
	body := []byte(`{"preferredShift":"MORNING","compactness":8,"avoidDays":["friday"]}`)
	c, w := testContext(t, http.MethodPut, "/preferences", body, &middleware.TokenClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Upsert(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.saved)
	require.Equal(t, "stu-1", store.saved.UserID)
}

func TestPreferenceHandlerUpsertRejectsBadJSON(t *testing.T) {
	handler := NewPreferenceHandler(service.NewPreferenceService(&preferenceStoreMock{}, nil, nil))
	c, w := testContext(t, http.MethodPut, "/preferences", []byte(`{`), &middleware.TokenClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Upsert(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferenceHandlerUpsertRejectsUnknownShift(t *testing.T) {
	handler := NewPreferenceHandler(service.NewPreferenceService(&preferenceStoreMock{}, nil, nil))
	body := []byte(`{"preferredShift":"NIGHT","compactness":5}`)
	c, w := testContext(t, http.MethodPut, "/preferences", body, &middleware.TokenClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Upsert(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
