package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lifenavigator/internal/auth/handler/mocks"
	"lifenavigator/internal/auth/service"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/auth-mocks.go -package=mocks Service
type AuthHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	s.service = mocks.NewMockService(gomock.NewController(s.T()))
	s.router = chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *AuthHandlerSuite) post(path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *AuthHandlerSuite) TestLogin() {
	registrantID := id.NewRegistrantID()
	expires := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	s.service.EXPECT().Login(gomock.Any(), "ada@example.com", "pw-123456").
		Return(&service.Session{Token: "tok", RegistrantID: registrantID, ExpiresAt: expires}, nil)

	rec := s.post("/auth/login", `{"email":" Ada@Example.com ","password":"pw-123456"}`)

	s.Equal(http.StatusOK, rec.Code)
	var resp LoginResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("tok", resp.AccessToken)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(registrantID.String(), resp.RegistrantID)
}

func (s *AuthHandlerSuite) TestLoginInvalidCredentials() {
	s.service.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))

	rec := s.post("/auth/login", `{"email":"ada@example.com","password":"nope"}`)

	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *AuthHandlerSuite) TestLoginMissingFields() {
	rec := s.post("/auth/login", `{"email":"ada@example.com"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *AuthHandlerSuite) TestVerifyEmail() {
	registrantID := id.NewRegistrantID()
	s.service.EXPECT().VerifyEmail(gomock.Any(), "tok").Return(registrantID, nil)

	rec := s.post("/auth/verify-email", `{"token":"tok"}`)

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"registrant_id":"`+registrantID.String()+`","email_verified":true}`, rec.Body.String())
}

func (s *AuthHandlerSuite) TestLogout() {
	s.service.EXPECT().Logout(gomock.Any(), "tok").Return(nil)

	rec := s.post("/auth/logout", "", "Authorization", "Bearer tok")

	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *AuthHandlerSuite) TestLogoutWithoutToken() {
	s.Equal(http.StatusUnauthorized, s.post("/auth/logout", "").Code)
}
