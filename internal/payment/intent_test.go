package payment_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/kvitka-ua/backend-kvitka/internal/payment"
)

func TestBuildSinglePayment(t *testing.T) {
	b := payment.NewBuilder()
	intent, err := b.Build(payment.ActionCreate, payment.IntentInput{
		OrderID:     "o1",
		Amount:      json.Number("100.50"),
		RedirectURL: "https://x/pay/o1",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if intent.Mode != payment.ModeSingle {
		t.Fatalf("mode = %s, want single", intent.Mode)
	}
	if intent.Amount != 10050 {
		t.Fatalf("amount = %d, want 10050", intent.Amount)
	}
	if intent.PartsCount != 0 {
		t.Fatalf("parts = %d, want 0", intent.PartsCount)
	}
}

func TestBuildRequiresRedirectURL(t *testing.T) {
	b := payment.NewBuilder()
	_, err := b.Build(payment.ActionCreate, payment.IntentInput{
		OrderID: "o1",
		Amount:  json.Number("100.50"),
	})
	var validation *payment.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := b.Build(payment.ActionCreate, payment.IntentInput{
		OrderID:     "o1",
		Amount:      json.Number("100.50"),
		RedirectURL: "not a url",
	}); !errors.As(err, &validation) {
		t.Fatalf("relative redirect url accepted: %v", err)
	}
}

func TestBuildInstallment(t *testing.T) {
	b := payment.NewBuilder()
	intent, err := b.Build(payment.ActionCreatePart, payment.IntentInput{
		OrderID:    "o2",
		Amount:     json.Number("200.75"),
		PartsCount: 3,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if intent.Mode != payment.ModeInstallment || intent.PartsCount != 3 {
		t.Fatalf("unexpected intent %+v", intent)
	}
}

func TestBuildInstallmentPartsRange(t *testing.T) {
	b := payment.NewBuilder()
	var validation *payment.ValidationError
	for _, parts := range []int{0, 1, 13, -2} {
		_, err := b.Build(payment.ActionCreatePart, payment.IntentInput{
			OrderID:    "o2",
			Amount:     json.Number("200.75"),
			PartsCount: parts,
		})
		if !errors.As(err, &validation) {
			t.Fatalf("partsCount %d: expected ValidationError, got %v", parts, err)
		}
	}
	for _, parts := range []int{2, 12} {
		if _, err := b.Build(payment.ActionCreatePart, payment.IntentInput{
			OrderID:    "o2",
			Amount:     json.Number("200.75"),
			PartsCount: parts,
		}); err != nil {
			t.Fatalf("partsCount %d should be valid: %v", parts, err)
		}
	}
}

func TestBuildRejectsBadAmounts(t *testing.T) {
	b := payment.NewBuilder()
	var validation *payment.ValidationError
	for _, amount := range []string{"", "abc", "-5.00", "0", "1.005"} {
		_, err := b.Build(payment.ActionCreate, payment.IntentInput{
			OrderID:     "o1",
			Amount:      json.Number(amount),
			RedirectURL: "https://x/pay/o1",
		})
		if !errors.As(err, &validation) {
			t.Fatalf("amount %q: expected ValidationError, got %v", amount, err)
		}
	}
}

func TestBuildUnknownAction(t *testing.T) {
	b := payment.NewBuilder()
	_, err := b.Build("refund", payment.IntentInput{
		OrderID: "o1",
		Amount:  json.Number("1.00"),
	})
	var unsupported *payment.UnsupportedActionError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedActionError, got %v", err)
	}
	if unsupported.Action != "refund" {
		t.Fatalf("action = %q", unsupported.Action)
	}
}
