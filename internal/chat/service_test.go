package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type recordedEvent struct {
	Target string // "chat:<id>", "agents", "agent:<id>"
	Event  string
	Data   any
}

// recordingNotifier captures router events instead of delivering them.
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) record(target, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Target: target, Event: event, Data: data})
}

func (n *recordingNotifier) ToChat(chatID, event string, data any) {
	n.record("chat:"+chatID, event, data)
}

func (n *recordingNotifier) ToAgents(event string, data any) {
	n.record("agents", event, data)
}

func (n *recordingNotifier) ToAgent(agentID, event string, data any) {
	n.record("agent:"+agentID, event, data)
}

func (n *recordingNotifier) byEvent(event string) []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []recordedEvent
	for _, e := range n.events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// sqlite serializes writers; a single connection keeps concurrent
	// transactions from tripping over table locks
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Chat{}, &Message{}, &Agent{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	n := &recordingNotifier{}
	return NewService(repo, n, nil, nil), n
}

func mustUpsert(t *testing.T, svc *Service, name, email string) *Agent {
	t.Helper()
	a, err := svc.UpsertAgent(context.Background(), "", name, email)
	if err != nil {
		t.Fatalf("upsert agent %s: %v", email, err)
	}
	return a
}

func mustEscalate(t *testing.T, svc *Service, req EscalationRequest) *Chat {
	t.Helper()
	c, err := svc.Escalate(context.Background(), req)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	return c
}

func TestEscalateCreatesWaitingChat(t *testing.T) {
	svc, n := newTestService(t)

	c := mustEscalate(t, svc, EscalationRequest{
		CustomerID:   "u1",
		CustomerName: "Ada Obi",
		Issue:        "refund dispute over $300",
		SeedMessage:  "I want a refund of $300 for my order",
	})

	if c.State != StateWaiting {
		t.Fatalf("expected waiting chat, got %s", c.State)
	}
	if ok, _ := regexp.MatchString(`^CASE-\d{14}$`, c.CaseNumber); !ok {
		t.Fatalf("unexpected case number %q", c.CaseNumber)
	}
	if c.Priority != "normal" {
		t.Fatalf("expected default priority, got %q", c.Priority)
	}

	history, err := svc.History(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].From != SenderCustomer {
		t.Fatalf("expected transcript seeded with customer message, got %+v", history)
	}

	fanout := n.byEvent("new_escalation")
	if len(fanout) != 1 || fanout[0].Target != "agents" {
		t.Fatalf("expected one new_escalation fan-out to agents, got %+v", fanout)
	}
}

func TestEscalateReusesExistingID(t *testing.T) {
	svc, _ := newTestService(t)

	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "first"})
	again := mustEscalate(t, svc, EscalationRequest{ChatID: c.ID, CustomerID: "u1", Issue: "second"})

	if again.ID != c.ID {
		t.Fatalf("expected same chat id")
	}
	if again.Issue != "first" {
		t.Fatalf("expected existing chat returned untouched, got issue %q", again.Issue)
	}
}

func TestSetAvailableNoWaitingChat(t *testing.T) {
	svc, _ := newTestService(t)
	a := mustUpsert(t, svc, "Sarah Johnson", "sarah.j@shopnex.com")

	// idempotent: repeat and verify no chat mutation either time
	for i := 0; i < 2; i++ {
		c, history, err := svc.SetAvailable(context.Background(), a.ID)
		if err != nil {
			t.Fatalf("set available: %v", err)
		}
		if c != nil || history != nil {
			t.Fatalf("expected no assignment, got %+v", c)
		}
	}

	got, err := svc.GetAgent(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got.Status != AgentAvailable || got.CurrentChat != nil {
		t.Fatalf("agent should stay idle-available, got %+v", got)
	}
}

func TestSetAvailableUnknownAgent(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.SetAvailable(context.Background(), "no-such-agent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignmentDeliversContextAndHandoff(t *testing.T) {
	svc, n := newTestService(t)

	c := mustEscalate(t, svc, EscalationRequest{
		CustomerID:  "u1",
		Issue:       "billing dispute",
		SeedMessage: "my card was charged twice",
	})
	a := mustUpsert(t, svc, "Michael Chen", "michael.c@shopnex.com")

	claimed, history, err := svc.SetAvailable(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("set available: %v", err)
	}
	if claimed == nil || claimed.ID != c.ID {
		t.Fatalf("expected claim of %s, got %+v", c.ID, claimed)
	}
	if len(history) != 2 {
		t.Fatalf("expected seed + hand-off in transcript, got %d messages", len(history))
	}
	if history[1].From != SenderSystem {
		t.Fatalf("expected system hand-off message, got %+v", history[1])
	}

	got, _ := svc.GetAgent(context.Background(), a.ID)
	if got.Status != AgentBusy || got.CurrentChat == nil || *got.CurrentChat != c.ID {
		t.Fatalf("agent not busy on claimed chat: %+v", got)
	}

	assigned := n.byEvent("chat_assigned")
	if len(assigned) != 1 || assigned[0].Target != "chat:"+c.ID {
		t.Fatalf("expected chat_assigned to the customer room, got %+v", assigned)
	}
}

func TestAssignmentIsFIFO(t *testing.T) {
	svc, _ := newTestService(t)

	first := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "oldest"})
	time.Sleep(5 * time.Millisecond)
	mustEscalate(t, svc, EscalationRequest{CustomerID: "u2", Issue: "newest"})

	a := mustUpsert(t, svc, "Emma Wilson", "emma.w@shopnex.com")
	claimed, _, err := svc.SetAvailable(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("set available: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID {
		t.Fatalf("expected oldest waiting chat %s, got %+v", first.ID, claimed)
	}
}

func TestConcurrentClaimExactlyOneWinner(t *testing.T) {
	svc, _ := newTestService(t)

	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "single waiting chat"})

	const agents = 8
	ids := make([]string, agents)
	for i := 0; i < agents; i++ {
		a := mustUpsert(t, svc, fmt.Sprintf("Agent %d", i), fmt.Sprintf("agent%d@shopnex.com", i))
		ids[i] = a.ID
	}

	var wg sync.WaitGroup
	winners := make(chan string, agents)
	for _, id := range ids {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			claimed, _, err := svc.SetAvailable(context.Background(), agentID)
			if err != nil {
				t.Errorf("set available %s: %v", agentID, err)
				return
			}
			if claimed != nil {
				winners <- agentID
			}
		}(id)
	}
	wg.Wait()
	close(winners)

	var won []string
	for id := range winners {
		won = append(won, id)
	}
	if len(won) != 1 {
		t.Fatalf("expected exactly one winning agent, got %d", len(won))
	}

	got, err := svc.GetChat(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if got.State != StateAssigned || got.AgentID == nil || *got.AgentID != won[0] {
		t.Fatalf("chat not assigned to winner: %+v", got)
	}

	for _, id := range ids {
		a, _ := svc.GetAgent(context.Background(), id)
		if id == won[0] {
			if a.Status != AgentBusy || a.CurrentChat == nil {
				t.Fatalf("winner not busy: %+v", a)
			}
			continue
		}
		if a.Status != AgentAvailable || a.CurrentChat != nil {
			t.Fatalf("loser %s must stay available, got %+v", id, a)
		}
	}
}

func TestAppendOrderingAndHistory(t *testing.T) {
	svc, n := newTestService(t)
	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "ordering"})

	texts := []string{"m1", "m2", "m3"}
	for _, txt := range texts {
		if _, err := svc.AppendMessage(context.Background(), c.ID, SenderCustomer, txt); err != nil {
			t.Fatalf("append %s: %v", txt, err)
		}
	}

	history, err := svc.History(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	for i, txt := range texts {
		if history[i].Text != txt {
			t.Fatalf("message %d: got %q want %q", i, history[i].Text, txt)
		}
		if i > 0 && history[i].CreatedAt.Before(history[i-1].CreatedAt) {
			t.Fatalf("timestamps must be non-decreasing")
		}
	}

	// persist-then-publish: one new_message event per append
	if got := len(n.byEvent("new_message")); got != 3 {
		t.Fatalf("expected 3 new_message events, got %d", got)
	}
}

func TestResolveWaitingChat(t *testing.T) {
	svc, n := newTestService(t)
	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "never assigned"})

	resolved, err := svc.Resolve(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.State != StateResolved || resolved.ResolvedAt == nil {
		t.Fatalf("expected resolved chat with timestamp, got %+v", resolved)
	}

	// terminal: resolving again is rejected
	if _, err := svc.Resolve(context.Background(), c.ID); !errors.Is(err, ErrChatResolved) {
		t.Fatalf("expected ErrChatResolved, got %v", err)
	}
	if len(n.byEvent("chat_resolved")) != 1 {
		t.Fatalf("expected one chat_resolved event")
	}
}

func TestResolveFreesAgent(t *testing.T) {
	svc, _ := newTestService(t)
	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "assigned then resolved"})
	a := mustUpsert(t, svc, "David Martinez", "david.m@shopnex.com")

	if claimed, _, err := svc.SetAvailable(context.Background(), a.ID); err != nil || claimed == nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), c.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, _ := svc.GetAgent(context.Background(), a.ID)
	if got.Status != AgentAvailable || got.CurrentChat != nil {
		t.Fatalf("agent must be freed on resolve, got %+v", got)
	}
}

func TestResolveUnknownChat(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Resolve(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendToResolvedChatRejected(t *testing.T) {
	svc, _ := newTestService(t)
	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "done"})
	if _, err := svc.Resolve(context.Background(), c.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := svc.AppendMessage(context.Background(), c.ID, SenderCustomer, "late"); !errors.Is(err, ErrChatClosed) {
		t.Fatalf("expected ErrChatClosed, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	svc, n := newTestService(t)
	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "needs specialist"})

	a := mustUpsert(t, svc, "Lisa Nguyen", "lisa.n@shopnex.com")
	b := mustUpsert(t, svc, "James Thompson", "james.t@shopnex.com")

	if claimed, _, err := svc.SetAvailable(context.Background(), a.ID); err != nil || claimed == nil {
		t.Fatalf("claim failed: %v", err)
	}

	got, err := svc.Transfer(context.Background(), c.ID, b.ID)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got.State != StateAssigned || got.AgentID == nil || *got.AgentID != b.ID {
		t.Fatalf("expected chat assigned to %s, got %+v", b.ID, got)
	}

	fromAgent, _ := svc.GetAgent(context.Background(), a.ID)
	toAgent, _ := svc.GetAgent(context.Background(), b.ID)
	if fromAgent.Status != AgentAvailable || fromAgent.CurrentChat != nil {
		t.Fatalf("source agent must be freed, got %+v", fromAgent)
	}
	if toAgent.Status != AgentBusy || toAgent.CurrentChat == nil || *toAgent.CurrentChat != c.ID {
		t.Fatalf("target agent must be busy, got %+v", toAgent)
	}

	if len(n.byEvent("chat_transferred")) != 1 {
		t.Fatalf("expected chat_transferred to the room")
	}
	if len(n.byEvent("agent_transferred")) != 2 {
		t.Fatalf("expected agent_transferred to both agents")
	}
}

func TestTransferToBusyAgentRejected(t *testing.T) {
	svc, _ := newTestService(t)

	c1 := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "one"})
	time.Sleep(5 * time.Millisecond)
	mustEscalate(t, svc, EscalationRequest{CustomerID: "u2", Issue: "two"})

	a := mustUpsert(t, svc, "Olivia Brown", "olivia.b@shopnex.com")
	b := mustUpsert(t, svc, "Daniel Kim", "daniel.k@shopnex.com")

	if claimed, _, err := svc.SetAvailable(context.Background(), a.ID); err != nil || claimed == nil || claimed.ID != c1.ID {
		t.Fatalf("first claim failed: %v", err)
	}
	if claimed, _, err := svc.SetAvailable(context.Background(), b.ID); err != nil || claimed == nil {
		t.Fatalf("second claim failed: %v", err)
	}

	if _, err := svc.Transfer(context.Background(), c1.ID, b.ID); !errors.Is(err, ErrAgentBusy) {
		t.Fatalf("expected ErrAgentBusy, got %v", err)
	}

	// rollback: nothing moved
	got, _ := svc.GetChat(context.Background(), c1.ID)
	if got.AgentID == nil || *got.AgentID != a.ID {
		t.Fatalf("failed transfer must leave assignment untouched, got %+v", got)
	}
}

func TestMarkOfflineClearsOwnFieldsOnly(t *testing.T) {
	svc, _ := newTestService(t)
	c := mustEscalate(t, svc, EscalationRequest{CustomerID: "u1", Issue: "orphaned on disconnect"})
	a := mustUpsert(t, svc, "Sophia Rodriguez", "sophia.r@shopnex.com")

	if claimed, _, err := svc.SetAvailable(context.Background(), a.ID); err != nil || claimed == nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := svc.MarkOffline(context.Background(), a.ID); err != nil {
		t.Fatalf("mark offline: %v", err)
	}

	gotAgent, _ := svc.GetAgent(context.Background(), a.ID)
	if gotAgent.Online || gotAgent.Status != AgentOffline || gotAgent.CurrentChat != nil {
		t.Fatalf("agent fields not cleared: %+v", gotAgent)
	}

	// the chat is deliberately left assigned; disconnect does not requeue it
	gotChat, _ := svc.GetChat(context.Background(), c.ID)
	if gotChat.State != StateAssigned {
		t.Fatalf("chat state must be untouched by disconnect, got %s", gotChat.State)
	}
}

func TestUpsertAgentIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	first := mustUpsert(t, svc, "Ethan Patel", "ethan.p@shopnex.com")
	if err := svc.MarkOffline(context.Background(), first.ID); err != nil {
		t.Fatalf("mark offline: %v", err)
	}

	second := mustUpsert(t, svc, "Ethan K. Patel", "ethan.p@shopnex.com")
	if second.ID != first.ID {
		t.Fatalf("relogin must reuse the agent record")
	}
	if !second.Online || second.Status != AgentAvailable {
		t.Fatalf("relogin must mark online available, got %+v", second)
	}
	if second.Name != "Ethan K. Patel" {
		t.Fatalf("relogin must refresh the name, got %q", second.Name)
	}
}

func TestEscalateRollsBackChatWhenSeedInsertFails(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	n := &recordingNotifier{}
	svc := NewService(repo, n, nil, nil)

	// losing the transcript table makes the seed insert fail mid-transaction
	if err := db.Migrator().DropTable(&Message{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, err := svc.Escalate(context.Background(), EscalationRequest{
		CustomerID:  "u1",
		Issue:       "refund dispute",
		SeedMessage: "I want a refund of $300",
	})
	if err == nil {
		t.Fatalf("expected escalate to fail")
	}

	var chats int64
	if err := db.Model(&Chat{}).Count(&chats).Error; err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if chats != 0 {
		t.Fatalf("chat row must roll back with its seed, found %d", chats)
	}
	if got := n.byEvent("new_escalation"); len(got) != 0 {
		t.Fatalf("no fan-out after a failed escalation, got %+v", got)
	}
}

func TestClaimRollsBackWhenHandoffInsertFails(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	n := &recordingNotifier{}
	svc := NewService(repo, n, nil, nil)

	c := mustEscalate(t, svc, EscalationRequest{
		CustomerID:  "u1",
		Issue:       "billing dispute",
		SeedMessage: "my card was charged twice",
	})
	a := mustUpsert(t, svc, "Sarah Johnson", "sarah.j@shopnex.com")

	if err := db.Migrator().DropTable(&Message{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	if _, _, err := svc.SetAvailable(context.Background(), a.ID); err == nil {
		t.Fatalf("expected assignment to fail")
	}

	gotChat, err := svc.GetChat(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("get chat: %v", err)
	}
	if gotChat.State != StateWaiting || gotChat.AgentID != nil {
		t.Fatalf("claim must roll back with the hand-off, got %+v", gotChat)
	}

	gotAgent, err := svc.GetAgent(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if gotAgent.Status != AgentAvailable || gotAgent.CurrentChat != nil {
		t.Fatalf("agent must stay free after a rolled-back claim, got %+v", gotAgent)
	}
	if got := n.byEvent("chat_assigned"); len(got) != 0 {
		t.Fatalf("no chat_assigned after a rolled-back claim, got %+v", got)
	}
}
