package support

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/shopnex/helpdesk/internal/ai"
	"github.com/shopnex/helpdesk/internal/catalog"
	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/markup"
	"github.com/shopnex/helpdesk/internal/triage"
)

const (
	replyUnknownCustomer = "Hi there! We couldn't find your account. Can you double-check your email or phone number?"
	replyProviderFailure = "Sorry, something went wrong while contacting our AI assistant. Please try again later."
)

// Reply is the orchestrator's answer to one inbound customer message.
type Reply struct {
	Raw          string
	Formatted    string
	IsEscalating bool
	ChatID       string
	CaseNumber   string
}

// Escalator hands a conversation over to the human routing layer.
type Escalator interface {
	Escalate(ctx context.Context, req chat.EscalationRequest) (*chat.Chat, error)
}

type Service struct {
	catalog    *catalog.Catalog
	classifier *triage.Classifier
	provider   ai.Provider
	escalator  Escalator
}

func NewService(cat *catalog.Catalog, cls *triage.Classifier, provider ai.Provider, esc Escalator) *Service {
	return &Service{
		catalog:    cat,
		classifier: cls,
		provider:   provider,
		escalator:  esc,
	}
}

func canned(text string) Reply {
	return Reply{Raw: text, Formatted: markup.Plain(text)}
}

// Handle resolves the customer, triages the message, and produces a reply.
// Lookup misses and provider failures are answered with canned replies;
// only routing-layer failures surface as errors.
func (s *Service) Handle(ctx context.Context, identifier, rawMessage string) (Reply, error) {
	message := strings.TrimSpace(rawMessage)

	customer, ok := s.catalog.FindCustomer(identifier)
	if !ok {
		return canned(replyUnknownCustomer), nil
	}

	orders := s.catalog.OrdersByUser(customer.UserID)
	if len(orders) == 0 {
		return canned(fmt.Sprintf(
			"Hey %s, we couldn't find any orders on your account. Did you use another email or phone number?",
			customer.Name)), nil
	}

	// newest order is the default context for the conversation
	lastOrder := orders[len(orders)-1]
	payment, hasPayment := s.catalog.PaymentByID(lastOrder.PaymentID)
	product, hasProduct := s.catalog.ProductByID(lastOrder.ProductID)

	switch s.classifier.Classify(message) {
	case triage.DecisionGreeting:
		return canned(fmt.Sprintf(
			"Hi %s! Thanks for reaching out. How can I assist you today?", customer.Name)), nil

	case triage.DecisionClarify:
		return canned(fmt.Sprintf(
			"Hi %s, could you please provide more details about your issue so I can assist you better?",
			customer.Name)), nil

	case triage.DecisionEscalate:
		created, err := s.escalator.Escalate(ctx, chat.EscalationRequest{
			CustomerID:    customer.UserID,
			CustomerName:  customer.Name,
			CustomerEmail: customer.Email,
			Issue:         message,
			SeedMessage:   message,
		})
		if err != nil {
			return Reply{}, fmt.Errorf("escalate: %w", err)
		}
		reply := canned(fmt.Sprintf(
			"Hi %s, it looks like your request requires special attention. I'm escalating this to one of our agents who will assist you shortly.",
			customer.Name))
		reply.IsEscalating = true
		reply.ChatID = created.ID
		reply.CaseNumber = created.CaseNumber
		return reply, nil
	}

	prompt := buildPrompt(customer, message, &lastOrder, maybePayment(payment, hasPayment),
		maybeProduct(product, hasProduct), s.catalog.Policy())

	answer, err := s.provider.Chat(ctx, []ai.Message{{Role: ai.RoleUser, Content: prompt}})
	if err != nil {
		log.Printf("[support] provider failed for %s: %v", customer.UserID, err)
		return canned(replyProviderFailure), nil
	}

	raw := strings.TrimSpace(answer)
	return Reply{Raw: raw, Formatted: markup.Render(raw)}, nil
}

func maybePayment(p catalog.Payment, ok bool) *catalog.Payment {
	if !ok {
		return nil
	}
	return &p
}

func maybeProduct(p catalog.Product, ok bool) *catalog.Product {
	if !ok {
		return nil
	}
	return &p
}

func jsonBlock(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fallback
	}
	return string(b)
}

func buildPrompt(customer catalog.Customer, message string, order *catalog.Order,
	payment *catalog.Payment, product *catalog.Product, policy catalog.Policy) string {

	var b strings.Builder
	b.WriteString("You are a helpful and professional customer support assistant for the ShopNex e-commerce platform.\n\n")
	fmt.Fprintf(&b, "Customer Info:\nName: %s\nEmail: %s\nPhone: %s\nAddress: %s\n\n",
		customer.Name, customer.Email, customer.Phone, customer.Address)
	fmt.Fprintf(&b, "Support Message: %s\n\n", message)

	var orderAny, paymentAny, productAny any
	if order != nil {
		orderAny = order
	}
	if payment != nil {
		paymentAny = payment
	}
	if product != nil {
		productAny = product
	}
	fmt.Fprintf(&b, "Order Info:\n%s\n\n", jsonBlock(orderAny, "No order information available"))
	fmt.Fprintf(&b, "Payment Info:\n%s\n\n", jsonBlock(paymentAny, "No payment information available"))
	fmt.Fprintf(&b, "Product Info:\n%s\n\n", jsonBlock(productAny, "No product information available"))
	fmt.Fprintf(&b, "Support Policy:\n%s\n\n", jsonBlock(policy, ""))

	b.WriteString("Respond kindly, clearly, and informatively to the customer's concern.\n")
	b.WriteString("Use markdown formatting for emphasis:\n")
	b.WriteString("- Use *** for important information that should be highlighted (like action items or critical details)\n")
	b.WriteString("- Use ** for regular emphasis\n")
	b.WriteString("- Use bullet points for lists of steps or recommendations\n\n")
	b.WriteString(`Always refer to the platform as "ShopNex".`)
	return b.String()
}
