package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"lifenavigator/internal/billing/handler/mocks"
	"lifenavigator/internal/billing/metrics"
	"lifenavigator/internal/billing/models"
	refmodels "lifenavigator/internal/referral/models"
	id "lifenavigator/pkg/domain"
	dErrors "lifenavigator/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/billing-mocks.go -package=mocks Converter
type PaymentWebhookSuite struct {
	suite.Suite
	converter *mocks.MockConverter
	metrics   *metrics.Metrics
	router    chi.Router
	secret    []byte
}

func TestPaymentWebhookSuite(t *testing.T) {
	suite.Run(t, new(PaymentWebhookSuite))
}

func (s *PaymentWebhookSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.converter = mocks.NewMockConverter(ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.secret = []byte("whsec_test")
	s.router = chi.NewRouter()
	New(s.converter, s.secret, slog.New(slog.NewTextHandler(io.Discard, nil)), s.metrics).Register(s.router)
}

func (s *PaymentWebhookSuite) post(body string, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *PaymentWebhookSuite) payload(userID id.RegistrantID) string {
	return `{"event_id":"evt_1","user_id":"` + userID.String() + `","tier":"pro","amount":20.00}`
}

func (s *PaymentWebhookSuite) TestProcessesSignedEvent() {
	userID := id.NewRegistrantID()
	body := s.payload(userID)
	s.converter.EXPECT().MarkConverted(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, conv refmodels.Conversion) (*refmodels.ConversionResult, error) {
			s.Equal(userID, conv.ReferredID)
			s.Equal(id.TierPro, conv.Tier)
			s.Equal("20.00", conv.Amount.StringFixed(2))
			s.Equal("evt_1", conv.EventID)
			return &refmodels.ConversionResult{Referred: true, Converted: true, Credits: []*refmodels.Credit{{}}}, nil
		})

	rec := s.post(body, models.Sign(s.secret, []byte(body)))

	s.Equal(http.StatusOK, rec.Code)
	var resp PaymentResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(PaymentResponse{Received: true, Converted: true, CreditsMinted: 1}, resp)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Webhooks.WithLabelValues("processed")))
}

func (s *PaymentWebhookSuite) TestDuplicateDeliveryIsAcknowledged() {
	body := s.payload(id.NewRegistrantID())
	s.converter.EXPECT().MarkConverted(gomock.Any(), gomock.Any()).
		Return(&refmodels.ConversionResult{Referred: true, Duplicate: true}, nil)

	rec := s.post(body, models.Sign(s.secret, []byte(body)))

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"received":true,"duplicate":true,"converted":false,"credits_minted":0}`, rec.Body.String())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Webhooks.WithLabelValues("duplicate")))
}

func (s *PaymentWebhookSuite) TestRejectsBadSignature() {
	body := s.payload(id.NewRegistrantID())

	rec := s.post(body, models.Sign([]byte("other"), []byte(body)))
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.post(body, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Webhooks.WithLabelValues("bad_signature")))
}

func (s *PaymentWebhookSuite) TestRejectsInvalidPayload() {
	for name, body := range map[string]string{
		"not json":     `{`,
		"free tier":    `{"event_id":"e","user_id":"` + id.NewRegistrantID().String() + `","tier":"free","amount":20}`,
		"zero amount":  `{"event_id":"e","user_id":"` + id.NewRegistrantID().String() + `","tier":"pro","amount":0}`,
		"missing user": `{"event_id":"e","tier":"pro","amount":20}`,
	} {
		s.Run(name, func() {
			rec := s.post(body, models.Sign(s.secret, []byte(body)))
			s.Equal(http.StatusBadRequest, rec.Code)
		})
	}
}

func (s *PaymentWebhookSuite) TestUnknownRegistrant() {
	body := s.payload(id.NewRegistrantID())
	s.converter.EXPECT().MarkConverted(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "registrant not found"))

	rec := s.post(body, models.Sign(s.secret, []byte(body)))

	s.Equal(http.StatusNotFound, rec.Code)
}
