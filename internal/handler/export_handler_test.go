package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uniplan/enrollment-api/internal/middleware"
	"github.com/uniplan/enrollment-api/internal/models"
)

func TestExportHandlerDisabled(t *testing.T) {
	handler := NewExportHandler(nil, false)
	c, w := testContext(t, http.MethodGet, "/schedules/sched-1/export", nil, &middleware.TokenClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Export(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestExportHandlerListRequiresTerm(t *testing.T) {
	handler := NewExportHandler(nil, true)
	c, w := testContext(t, http.MethodGet, "/schedules", nil, &middleware.TokenClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerListRejectsUnknownKind(t *testing.T) {
	handler := NewExportHandler(nil, true)
	c, w := testContext(t, http.MethodGet, "/schedules?termId=term-1&kind=WEEKLY", nil, &middleware.TokenClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.List(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
