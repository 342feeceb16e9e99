package TaskEngine

import (
	"log"
	"time"

	"Beacon/Notifications"

	"gorm.io/gorm"
)

// EventSink publishes real-time events to store and HQ channels.
type EventSink interface {
	EmitToStore(storeID uint, name string, payload map[string]interface{}) error
	EmitToHQ(companyID uint, name string, payload map[string]interface{}) error
}

// PushSink delivers push notifications to users.
type PushSink interface {
	SendToUsers(companyID uint, userIDs []uint, title, body string, data map[string]string) error
}

// RewardSink awards gamification credits.
type RewardSink interface {
	OnActionCompleted(companyID uint, actionType string, userID uint, entityType string, entityID uint, firstAttempt bool) error
}

// Effect is one deferred side effect of a committed transition. The engine
// returns effects as plain data; only the dispatcher touches the sinks.
type Effect interface {
	run(d *Dispatcher) error
	name() string
}

// Dispatcher executes effects after the transition commits. Every failure is
// logged and swallowed: notification or gamification outages must never fail
// or roll back the transition that produced them. Nil sinks are skipped,
// which is how tests and broker-less deployments run.
type Dispatcher struct {
	DB      *gorm.DB
	Events  EventSink
	Push    PushSink
	Rewards RewardSink
}

func (d *Dispatcher) Run(effects []Effect) {
	if d == nil {
		return
	}
	for _, e := range effects {
		if err := e.run(d); err != nil {
			log.Printf("side effect %s failed: %v", e.name(), err)
		}
	}
}

type storeEvent struct {
	StoreID uint
	Event   string
	Payload map[string]interface{}
}

func (e storeEvent) name() string { return "store event " + e.Event }
func (e storeEvent) run(d *Dispatcher) error {
	if d.Events == nil {
		return nil
	}
	return d.Events.EmitToStore(e.StoreID, e.Event, e.Payload)
}

type hqEvent struct {
	CompanyID uint
	Event     string
	Payload   map[string]interface{}
}

func (e hqEvent) name() string { return "hq event " + e.Event }
func (e hqEvent) run(d *Dispatcher) error {
	if d.Events == nil {
		return nil
	}
	return d.Events.EmitToHQ(e.CompanyID, e.Event, e.Payload)
}

// complianceSnapshot recomputes one store's counters for the tasks created on
// Day and emits them to both the store and HQ.
type complianceSnapshot struct {
	CompanyID uint
	StoreID   uint
	Day       time.Time
}

func (e complianceSnapshot) name() string { return "compliance snapshot" }
func (e complianceSnapshot) run(d *Dispatcher) error {
	if d.Events == nil {
		return nil
	}
	payload, err := Notifications.StoreCompliance(d.DB, e.CompanyID, e.StoreID, e.Day)
	if err != nil {
		return err
	}
	if err := d.Events.EmitToStore(e.StoreID, "store:compliance", payload); err != nil {
		return err
	}
	return d.Events.EmitToHQ(e.CompanyID, "store:compliance", payload)
}

type pushUsers struct {
	CompanyID uint
	UserIDs   []uint
	Title     string
	Body      string
	Data      map[string]string
}

func (e pushUsers) name() string { return "push notification" }
func (e pushUsers) run(d *Dispatcher) error {
	if d.Push == nil || len(e.UserIDs) == 0 {
		return nil
	}
	return d.Push.SendToUsers(e.CompanyID, e.UserIDs, e.Title, e.Body, e.Data)
}

type reward struct {
	CompanyID    uint
	ActionType   string
	UserID       uint
	EntityType   string
	EntityID     uint
	FirstAttempt bool
}

func (e reward) name() string { return "gamification award " + e.ActionType }
func (e reward) run(d *Dispatcher) error {
	if d.Rewards == nil {
		return nil
	}
	return d.Rewards.OnActionCompleted(e.CompanyID, e.ActionType, e.UserID, e.EntityType, e.EntityID, e.FirstAttempt)
}
