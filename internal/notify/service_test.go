package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/guardian-ai/internal/evidence"
	"github.com/wolfman30/guardian-ai/internal/settings"
	"github.com/wolfman30/guardian-ai/internal/triggers"
)

type mockEmailSender struct {
	sent   []Alert
	failOn string
}

func (m *mockEmailSender) SendAlert(ctx context.Context, a Alert) error {
	if m.failOn != "" && a.To == m.failOn {
		return errors.New("mock email error")
	}
	m.sent = append(m.sent, a)
	return nil
}

func securedItem() evidence.Item {
	lat, lng := 36.75, 3.05
	return evidence.Item{
		ID:          "1700000000000",
		Timestamp:   1700000000000,
		Latitude:    &lat,
		Longitude:   &lng,
		TriggerType: triggers.SIMEject,
		Analysis: &evidence.Analysis{
			ThreatLevel:     evidence.ThreatHigh,
			LocationContext: "Bus stop <near> market",
		},
	}
}

func TestService_NotifyEvidenceSecured_OwnerAndContacts(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, "owner@example.com", nil)
	contacts := []settings.Contact{
		{Name: "Amina", Email: "amina@example.com", Relationship: settings.Family},
		{Name: "No Email", Email: " ", Relationship: settings.Other},
		{Name: "Karim", Email: "karim@example.com", Relationship: settings.Friend},
	}

	if err := svc.NotifyEvidenceSecured(context.Background(), securedItem(), "s3://bucket/key", contacts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "owner@example.com" {
		t.Errorf("expected owner first, got %s", sender.sent[0].To)
	}
	msg := sender.sent[1]
	if msg.ToName != "Amina" {
		t.Errorf("expected contact name, got %q", msg.ToName)
	}
	if !strings.Contains(msg.Subject, "HIGH") {
		t.Errorf("expected threat in subject, got %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "SIM_EJECT") || !strings.Contains(msg.Text, "36.75000, 3.05000") {
		t.Errorf("body missing details: %s", msg.Text)
	}
	if !strings.Contains(msg.Text, "https://maps.google.com/?q=36.75000,3.05000") {
		t.Errorf("body missing map link: %s", msg.Text)
	}
	if msg.EvidenceID != "1700000000000" || msg.Threat != evidence.ThreatHigh || !msg.Urgent() {
		t.Errorf("expected evidence id and HIGH threat on alert, got %q %q", msg.EvidenceID, msg.Threat)
	}
	if !strings.Contains(msg.HTML, "Bus stop &lt;near&gt; market") {
		t.Errorf("expected escaped scene in HTML: %s", msg.HTML)
	}
}

func TestService_NotifyEvidenceSecured_NoLocation(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, "", nil)
	item := securedItem()
	item.Latitude, item.Longitude = nil, nil
	item.Analysis = nil

	err := svc.NotifyEvidenceSecured(context.Background(), item, "", []settings.Contact{{Name: "A", Email: "a@example.com"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Text, "Position: not available") {
		t.Errorf("expected missing position, got %s", sender.sent[0].Text)
	}
	if strings.Contains(sender.sent[0].Text, "Map:") {
		t.Errorf("expected no map link")
	}
	if sender.sent[0].Threat != "" || sender.sent[0].Urgent() {
		t.Errorf("expected no threat without analysis, got %q", sender.sent[0].Threat)
	}
}

func TestService_NotifyEvidenceSecured_PartialFailure(t *testing.T) {
	sender := &mockEmailSender{failOn: "owner@example.com"}
	svc := NewService(sender, "owner@example.com", nil)

	err := svc.NotifyEvidenceSecured(context.Background(), securedItem(), "", []settings.Contact{{Name: "A", Email: "a@example.com"}})
	if err == nil {
		t.Fatal("expected error when one recipient fails")
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "a@example.com" {
		t.Fatalf("expected remaining recipient to be attempted, got %+v", sender.sent)
	}
}

func TestService_NilSenderIsNoop(t *testing.T) {
	svc := NewService(nil, "owner@example.com", nil)
	if err := svc.NotifyEvidenceSecured(context.Background(), securedItem(), "", nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var nilSvc *Service
	if err := nilSvc.NotifyEvidenceSecured(context.Background(), securedItem(), "", nil); err != nil {
		t.Fatalf("expected nil error on nil service, got %v", err)
	}
}
