package notify

import (
	"context"
	"fmt"
	"log"

	"familytrack/internal/core/model"
	"familytrack/internal/core/repository"
	"familytrack/internal/core/util"
	"familytrack/internal/worker"
)

// Delivery is the payload of a notification job: one content, one channel.
type Delivery struct {
	Channel    string
	Recipients []Recipient
	Content    Content
}

// Enqueuer schedules jobs; *worker.Pool satisfies it.
type Enqueuer interface {
	Enqueue(job *worker.Job) error
}

// Dispatcher resolves the guardians of an alert's subject and queues one delivery per channel.
type Dispatcher struct {
	families repository.FamilyRepository
	registry *Registry
	queue    Enqueuer
}

func NewDispatcher(families repository.FamilyRepository, registry *Registry, queue Enqueuer) *Dispatcher {
	return &Dispatcher{families: families, registry: registry, queue: queue}
}

func guardian(role string) bool {
	return role == "parent_admin" || role == "parent"
}

// Notify queues notice for every registered channel. Recipients are the parents in the
// subject's family other than the subject; a subject outside any family is ignored.
func (d *Dispatcher) Notify(ctx context.Context, notice model.Notice) error {
	member, err := d.families.FindByUserID(ctx, notice.UserID)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", notice.UserID, err)
	}
	if member == nil {
		return nil
	}

	members, err := d.families.FindByFamilyID(ctx, member.FamilyID)
	if err != nil {
		return fmt.Errorf("family %s: %w", member.FamilyID, err)
	}

	var recipients []Recipient
	for _, m := range members {
		if m.UserID == notice.UserID || !guardian(m.Role) {
			continue
		}
		recipients = append(recipients, Recipient{UserID: m.UserID, Name: m.Name})
	}
	if len(recipients) == 0 {
		return nil
	}

	content := Content{
		ID:            util.GenerateID(),
		Type:          notice.Type,
		SubjectUserID: notice.UserID,
		Title:         notice.Title,
		Body:          notice.Body,
		Priority:      notice.Priority,
		CreatedAt:     notice.CreatedAt,
	}
	for _, name := range d.registry.Names() {
		job := worker.NewJob("notify:"+name, Delivery{Channel: name, Recipients: recipients, Content: content})
		if err := d.queue.Enqueue(job); err != nil {
			return fmt.Errorf("enqueue %s: %w", name, err)
		}
	}
	return nil
}

// Handle is the worker.Handler for delivery jobs.
func (d *Dispatcher) Handle(ctx context.Context, job *worker.Job) error {
	delivery, ok := job.Payload.(Delivery)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	ch, ok := d.registry.Get(delivery.Channel)
	if !ok {
		return fmt.Errorf("unknown channel %q", delivery.Channel)
	}
	return ch.Send(ctx, delivery.Recipients, delivery.Content)
}

// ReportFailed logs a delivery that exhausted its attempts.
func ReportFailed(job *worker.Job) {
	if delivery, ok := job.Payload.(Delivery); ok {
		log.Printf("[notify] %s delivery %s to %d recipients failed permanently: %v",
			delivery.Channel, delivery.Content.ID, len(delivery.Recipients), job.LastError)
		return
	}
	log.Printf("[notify] job %s failed permanently: %v", job.ID, job.LastError)
}
