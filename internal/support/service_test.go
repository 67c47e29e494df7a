package support

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/shopnex/helpdesk/internal/ai"
	"github.com/shopnex/helpdesk/internal/catalog"
	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/triage"
)

type fakeProvider struct {
	reply   string
	err     error
	prompts []string
}

func (p *fakeProvider) Chat(_ context.Context, messages []ai.Message) (string, error) {
	for _, m := range messages {
		p.prompts = append(p.prompts, m.Content)
	}
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type fakeEscalator struct {
	err  error
	reqs []chat.EscalationRequest
}

func (e *fakeEscalator) Escalate(_ context.Context, req chat.EscalationRequest) (*chat.Chat, error) {
	e.reqs = append(e.reqs, req)
	if e.err != nil {
		return nil, e.err
	}
	return &chat.Chat{
		ID:         "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		CaseNumber: "CASE-20260831120000",
		State:      chat.StateWaiting,
	}, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New(
		[]catalog.Customer{{
			UserID:  "u1",
			Name:    "Adaeze Okafor",
			Email:   "adaeze@example.com",
			Phone:   "+2348012345678",
			Address: "12 Marina Rd, Lagos",
		}, {
			UserID: "u2",
			Name:   "Tunde Bello",
			Email:  "tunde@example.com",
		}},
		[]catalog.Order{{
			OrderID:   "ord1001",
			UserID:    "u1",
			ProductID: "prod01",
			PaymentID: "pay2001",
			Status:    "delivered",
		}},
		[]catalog.Payment{{PaymentID: "pay2001", Status: "success"}},
		[]catalog.Product{{ProductID: "prod01", Name: "Wireless Earbuds"}},
		catalog.Policy{RefundWindowDays: 7},
	)
}

func newTestSupport(provider ai.Provider, esc Escalator) *Service {
	return NewService(testCatalog(), triage.NewClassifier(triage.DefaultLists()), provider, esc)
}

func TestHandleUnknownCustomer(t *testing.T) {
	esc := &fakeEscalator{}
	svc := newTestSupport(&fakeProvider{}, esc)

	reply, err := svc.Handle(context.Background(), "nobody@example.com", "where is my order")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Raw != "Hi there! We couldn't find your account. Can you double-check your email or phone number?" {
		t.Fatalf("unexpected reply %q", reply.Raw)
	}
	if reply.IsEscalating || len(esc.reqs) != 0 {
		t.Fatalf("unknown customer must never escalate")
	}
	if !strings.HasPrefix(reply.Formatted, "<div>") {
		t.Fatalf("expected wrapped formatted reply, got %q", reply.Formatted)
	}
}

func TestHandleCustomerWithoutOrders(t *testing.T) {
	svc := newTestSupport(&fakeProvider{}, &fakeEscalator{})

	reply, err := svc.Handle(context.Background(), "tunde@example.com", "where is my order")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := "Hey Tunde Bello, we couldn't find any orders on your account. Did you use another email or phone number?"
	if reply.Raw != want {
		t.Fatalf("got %q want %q", reply.Raw, want)
	}
	if reply.IsEscalating {
		t.Fatalf("no-orders reply must not escalate")
	}
}

func TestHandleGreeting(t *testing.T) {
	provider := &fakeProvider{reply: "should not be called"}
	svc := newTestSupport(provider, &fakeEscalator{})

	reply, err := svc.Handle(context.Background(), "adaeze@example.com", "  Hello  ")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.Raw != "Hi Adaeze Okafor! Thanks for reaching out. How can I assist you today?" {
		t.Fatalf("unexpected greeting %q", reply.Raw)
	}
	if len(provider.prompts) != 0 {
		t.Fatalf("greeting must not reach the provider")
	}
}

func TestHandleClarify(t *testing.T) {
	svc := newTestSupport(&fakeProvider{}, &fakeEscalator{})

	reply, err := svc.Handle(context.Background(), "adaeze@example.com", "help")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(reply.Raw, "provide more details") {
		t.Fatalf("expected clarification prompt, got %q", reply.Raw)
	}
}

func TestHandleEscalation(t *testing.T) {
	esc := &fakeEscalator{}
	provider := &fakeProvider{reply: "should not be called"}
	svc := newTestSupport(provider, esc)

	reply, err := svc.Handle(context.Background(), "adaeze@example.com", "I want a refund of $300 for my order")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !reply.IsEscalating {
		t.Fatalf("expected escalation")
	}
	if reply.ChatID == "" {
		t.Fatalf("expected chat id on escalation")
	}
	if ok, _ := regexp.MatchString(`^CASE-\d{14}$`, reply.CaseNumber); !ok {
		t.Fatalf("unexpected case number %q", reply.CaseNumber)
	}
	if !strings.Contains(reply.Raw, "requires special attention") {
		t.Fatalf("unexpected escalation reply %q", reply.Raw)
	}
	if len(esc.reqs) != 1 {
		t.Fatalf("expected one escalation request, got %d", len(esc.reqs))
	}
	req := esc.reqs[0]
	if req.CustomerID != "u1" || req.SeedMessage != "I want a refund of $300 for my order" {
		t.Fatalf("unexpected escalation request %+v", req)
	}
	if len(provider.prompts) != 0 {
		t.Fatalf("escalation must not reach the provider")
	}
}

func TestHandleEscalationRouterFailure(t *testing.T) {
	esc := &fakeEscalator{err: errors.New("queue down")}
	svc := newTestSupport(&fakeProvider{}, esc)

	if _, err := svc.Handle(context.Background(), "adaeze@example.com", "I want a refund of $300"); err == nil {
		t.Fatalf("expected routing failure to surface")
	}
}

func TestHandleAutoReplyPromptContext(t *testing.T) {
	provider := &fakeProvider{reply: "Your order ***ord1001*** is on the way.\n* sit tight\n* check your email"}
	svc := newTestSupport(provider, &fakeEscalator{})

	reply, err := svc.Handle(context.Background(), "adaeze@example.com", "when will my wireless earbuds arrive?")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if reply.IsEscalating {
		t.Fatalf("auto reply must not escalate")
	}
	if !strings.Contains(reply.Formatted, `<strong class="highlight">`) {
		t.Fatalf("expected rendered emphasis, got %q", reply.Formatted)
	}
	if !strings.Contains(reply.Formatted, "<ul") {
		t.Fatalf("expected rendered list, got %q", reply.Formatted)
	}

	if len(provider.prompts) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.prompts))
	}
	prompt := provider.prompts[0]
	for _, fragment := range []string{
		"ShopNex",
		"Adaeze Okafor",
		"ord1001",
		"pay2001",
		"Wireless Earbuds",
		"when will my wireless earbuds arrive?",
		"Support Policy:",
	} {
		if !strings.Contains(prompt, fragment) {
			t.Fatalf("prompt missing %q:\n%s", fragment, prompt)
		}
	}
}

func TestHandleProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream 500")}
	svc := newTestSupport(provider, &fakeEscalator{})

	reply, err := svc.Handle(context.Background(), "adaeze@example.com", "can you explain the status of my last delivery?")
	if err != nil {
		t.Fatalf("provider failure must not surface: %v", err)
	}
	if reply.Raw != replyProviderFailure {
		t.Fatalf("expected apology, got %q", reply.Raw)
	}
	if reply.IsEscalating {
		t.Fatalf("provider failure must not escalate")
	}
}
