package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shopnex/helpdesk/internal/chat"
	"github.com/shopnex/helpdesk/internal/config"
	"github.com/shopnex/helpdesk/internal/db"
	"github.com/shopnex/helpdesk/internal/email"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := chat.NewRepo(gdb)

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, nil)
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("notifier started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var n chat.EscalationNotice
				if err := json.Unmarshal(d.Body, &n); err != nil || n.ChatID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := notifyAgents(ctx, repo, smtp, n); err != nil {
					log.Printf("worker=%d notice %s failed cost=%s err=%v", workerID, n.ChatID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed chat=%s err=%v", workerID, n.ChatID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("notifier shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

// notifyAgents emails every available agent about a queued escalation.
// An empty roster is not an error; connected agents already saw the
// realtime fan-out.
func notifyAgents(ctx context.Context, repo *chat.Repo, smtp email.SMTPConfig, n chat.EscalationNotice) error {
	agents, err := repo.ListAvailableAgents(ctx)
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		log.Printf("notice %s: no available agents", n.ChatID)
		return nil
	}

	subject := fmt.Sprintf("New escalation %s", n.CaseNumber)
	body := fmt.Sprintf(
		"A customer chat has been escalated and is waiting for an agent.\n\n"+
			"Case: %s\nChat: %s\nPriority: %s\nOpened: %s\n\nIssue:\n%s\n",
		n.CaseNumber, n.ChatID, n.Priority, n.CreatedAt.Format(time.RFC3339), n.Issue,
	)

	for _, a := range agents {
		if err := email.SendText(smtp, a.Email, subject, body); err != nil {
			log.Printf("notice %s: email %s failed: %v", n.ChatID, a.Email, err)
		}
	}
	return nil
}
