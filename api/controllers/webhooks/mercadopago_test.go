package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mrioscamacho/memberfees-backend/pkg/logger"
	"github.com/mrioscamacho/memberfees-backend/pkg/mercadopago"
	"github.com/mrioscamacho/memberfees-backend/pkg/metrics"
)

const testWebhookSecret = "whsec-test"

type stubReconciler struct {
	handlePaymentFn func(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error)
	handleOrderFn   func(ctx context.Context, notification *mercadopago.OrderNotification, requestID string) (bool, error)
}

func (s *stubReconciler) HandlePayment(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
	if s.handlePaymentFn != nil {
		return s.handlePaymentFn(ctx, notification, requestID)
	}
	return true, nil
}

func (s *stubReconciler) HandleOrder(ctx context.Context, notification *mercadopago.OrderNotification, requestID string) (bool, error) {
	if s.handleOrderFn != nil {
		return s.handleOrderFn(ctx, notification, requestID)
	}
	return false, nil
}

type stubGuard struct {
	seen     map[string]bool
	released []string
	err      error
}

func newStubGuard() *stubGuard {
	return &stubGuard{seen: make(map[string]bool)}
}

func (s *stubGuard) CheckAndMark(_ context.Context, notificationType, dataID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	key := notificationType + ":" + dataID
	if s.seen[key] {
		return true, nil
	}
	s.seen[key] = true
	return false, nil
}

func (s *stubGuard) Release(_ context.Context, notificationType, dataID string) error {
	key := notificationType + ":" + dataID
	delete(s.seen, key)
	s.released = append(s.released, key)
	return nil
}

func testWebhookLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testVerifier(t *testing.T) *mercadopago.Verifier {
	t.Helper()
	verifier, err := mercadopago.NewVerifier(testWebhookSecret)
	if err != nil {
		t.Fatalf("build verifier: %v", err)
	}
	return verifier
}

func signedRequest(t *testing.T, dataID, requestID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago?data.id="+dataID, strings.NewReader(body))
	ts := "1724900000"
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write([]byte(manifest))
	req.Header.Set("x-signature", fmt.Sprintf("ts=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	req.Header.Set("x-request-id", requestID)
	return req
}

func decodeAck(t *testing.T, resp *httptest.ResponseRecorder) webhookAck {
	t.Helper()
	if resp.Code != http.StatusOK {
		t.Fatalf("webhook must answer 200, got %d", resp.Code)
	}
	var ack webhookAck
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("parse ack: %v", err)
	}
	return ack
}

func TestMercadoPagoWebhookProcessesSignedPayment(t *testing.T) {
	var gotDataID, gotRequestID string
	svc := &stubReconciler{
		handlePaymentFn: func(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
			gotDataID = notification.DataID
			gotRequestID = requestID
			return true, nil
		},
	}
	handler := MercadoPagoWebhook(svc, testVerifier(t), newStubGuard(), metrics.NewWebhookMetrics(nil), testWebhookLogger())

	req := signedRequest(t, "12345", "req-1", `{"type":"payment","data":{"id":"12345"}}`)
	resp := httptest.NewRecorder()
	handler(resp, req)

	ack := decodeAck(t, resp)
	if !ack.Success || !ack.Processed {
		t.Fatalf("expected processed ack got %+v", ack)
	}
	if gotDataID != "12345" {
		t.Fatalf("unexpected data id %q", gotDataID)
	}
	if gotRequestID != "req-1" {
		t.Fatalf("unexpected request id %q", gotRequestID)
	}
}

func TestMercadoPagoWebhookRejectsBadSignature(t *testing.T) {
	called := false
	svc := &stubReconciler{
		handlePaymentFn: func(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
			called = true
			return true, nil
		},
	}
	handler := MercadoPagoWebhook(svc, testVerifier(t), newStubGuard(), metrics.NewWebhookMetrics(nil), testWebhookLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago?data.id=12345", strings.NewReader(`{"type":"payment","data":{"id":"12345"}}`))
	req.Header.Set("x-signature", "ts=1724900000,v1=deadbeef")
	req.Header.Set("x-request-id", "req-2")
	resp := httptest.NewRecorder()
	handler(resp, req)

	ack := decodeAck(t, resp)
	if ack.Processed {
		t.Fatal("forged delivery must not be processed")
	}
	if called {
		t.Fatal("reconciler must not run on signature failure")
	}
}

func TestMercadoPagoWebhookDeduplicatesDelivery(t *testing.T) {
	var calls int
	svc := &stubReconciler{
		handlePaymentFn: func(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
			calls++
			return true, nil
		},
	}
	guard := newStubGuard()
	handler := MercadoPagoWebhook(svc, testVerifier(t), guard, metrics.NewWebhookMetrics(nil), testWebhookLogger())

	body := `{"type":"payment","data":{"id":"777"}}`
	first := httptest.NewRecorder()
	handler(first, signedRequest(t, "777", "req-3", body))
	second := httptest.NewRecorder()
	handler(second, signedRequest(t, "777", "req-3", body))

	if ack := decodeAck(t, first); !ack.Processed {
		t.Fatalf("first delivery should process, got %+v", ack)
	}
	if ack := decodeAck(t, second); ack.Processed {
		t.Fatalf("redelivery should be skipped, got %+v", ack)
	}
	if calls != 1 {
		t.Fatalf("reconciler ran %d times, expected 1", calls)
	}
}

func TestMercadoPagoWebhookReleasesMarkOnError(t *testing.T) {
	svc := &stubReconciler{
		handlePaymentFn: func(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
			return false, fmt.Errorf("provider timeout")
		},
	}
	guard := newStubGuard()
	handler := MercadoPagoWebhook(svc, testVerifier(t), guard, metrics.NewWebhookMetrics(nil), testWebhookLogger())

	resp := httptest.NewRecorder()
	handler(resp, signedRequest(t, "888", "req-4", `{"type":"payment","data":{"id":"888"}}`))

	ack := decodeAck(t, resp)
	if ack.Processed {
		t.Fatal("failed reconciliation must not report processed")
	}
	if len(guard.released) != 1 || guard.released[0] != "payment:888" {
		t.Fatalf("expected released mark, got %v", guard.released)
	}
	if guard.seen["payment:888"] {
		t.Fatal("mark should be gone so the provider retry can run")
	}
}

func TestMercadoPagoWebhookProcessesWhenGuardUnavailable(t *testing.T) {
	var calls int
	svc := &stubReconciler{
		handlePaymentFn: func(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
			calls++
			return true, nil
		},
	}
	guard := newStubGuard()
	guard.err = fmt.Errorf("redis unreachable")
	handler := MercadoPagoWebhook(svc, testVerifier(t), guard, metrics.NewWebhookMetrics(nil), testWebhookLogger())

	resp := httptest.NewRecorder()
	handler(resp, signedRequest(t, "321", "req-7", `{"type":"payment","data":{"id":"321"}}`))

	ack := decodeAck(t, resp)
	if !ack.Success || !ack.Processed {
		t.Fatalf("guard outage must not drop the delivery, got %+v", ack)
	}
	if calls != 1 {
		t.Fatalf("reconciler ran %d times, expected 1", calls)
	}
}

func TestMercadoPagoWebhookSkipsReleaseWhenGuardUnavailable(t *testing.T) {
	svc := &stubReconciler{
		handlePaymentFn: func(ctx context.Context, notification *mercadopago.PaymentNotification, requestID string) (bool, error) {
			return false, fmt.Errorf("provider timeout")
		},
	}
	guard := newStubGuard()
	guard.err = fmt.Errorf("redis unreachable")
	handler := MercadoPagoWebhook(svc, testVerifier(t), guard, metrics.NewWebhookMetrics(nil), testWebhookLogger())

	resp := httptest.NewRecorder()
	handler(resp, signedRequest(t, "654", "req-8", `{"type":"payment","data":{"id":"654"}}`))

	ack := decodeAck(t, resp)
	if ack.Processed {
		t.Fatal("failed reconciliation must not report processed")
	}
	if len(guard.released) != 0 {
		t.Fatalf("no mark was set, nothing to release, got %v", guard.released)
	}
}

func TestMercadoPagoWebhookRoutesOrderNotifications(t *testing.T) {
	var gotDataID string
	svc := &stubReconciler{
		handleOrderFn: func(ctx context.Context, notification *mercadopago.OrderNotification, requestID string) (bool, error) {
			gotDataID = notification.DataID
			return false, nil
		},
	}
	handler := MercadoPagoWebhook(svc, testVerifier(t), newStubGuard(), metrics.NewWebhookMetrics(nil), testWebhookLogger())

	resp := httptest.NewRecorder()
	handler(resp, signedRequest(t, "555001", "req-5", `{"type":"merchant_order","data":{"id":"555001"}}`))

	ack := decodeAck(t, resp)
	if ack.Processed {
		t.Fatal("order notifications only link state, processed should be false")
	}
	if gotDataID != "555001" {
		t.Fatalf("unexpected order id %q", gotDataID)
	}
}

func TestMercadoPagoWebhookIgnoresUnknownPayload(t *testing.T) {
	handler := MercadoPagoWebhook(&stubReconciler{}, testVerifier(t), newStubGuard(), metrics.NewWebhookMetrics(nil), testWebhookLogger())

	resp := httptest.NewRecorder()
	handler(resp, signedRequest(t, "999", "req-6", `{"type":"plan","data":{"id":"999"}}`))

	ack := decodeAck(t, resp)
	if ack.Processed {
		t.Fatal("unknown notification types must be acknowledged unprocessed")
	}
}
