package conductor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/dht"
	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/record"
)

// EventKind names a request routed by Dispatch.
type EventKind string

const (
	// PublishOps integrates Ops into the node's shard.
	PublishOps EventKind = "publish_ops"
	// GetRecord looks Hash up on local chains first, then in the shard.
	// Records from local chains are privatized; authors read their own
	// private entries through SourceChain.Get.
	GetRecord EventKind = "get_record"
	// GetAgentActivity returns the shard's view of the chain of agent Hash.
	GetAgentActivity EventKind = "get_agent_activity"
)

// Event is a request to the conductor. ID correlates the event with its
// result and log lines; Dispatch assigns one when it is zero.
type Event struct {
	ID   uuid.UUID
	Kind EventKind
	Ops  []dhtop.Op
	Hash hashing.Hash
}

// NewEvent returns an event of kind with a fresh ID.
func NewEvent(kind EventKind) Event { return Event{ID: uuid.New(), Kind: kind} }

type Result struct {
	ID       uuid.UUID
	Record   *record.Record
	Activity *dht.Activity
}

var ErrUnknownEvent = errors.New("conductor: unknown event")

// Dispatch handles ev.
func (c *Conductor) Dispatch(ctx context.Context, ev Event) (Result, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	res := Result{ID: ev.ID}
	log := c.logger.With("event_id", ev.ID.String(), "event", string(ev.Kind))

	switch ev.Kind {
	case PublishOps:
		if err := c.shard.Publish(ctx, ev.Ops); err != nil {
			log.WarnContext(ctx, "publish rejected", "ops", len(ev.Ops), "error", err)
			return res, err
		}
		log.DebugContext(ctx, "published", "ops", len(ev.Ops))
		return res, nil

	case GetRecord:
		r, err := c.getRecord(ctx, ev.Hash)
		if err != nil {
			return res, err
		}
		res.Record = &r
		return res, nil

	case GetAgentActivity:
		act := c.shard.AgentActivity(ev.Hash)
		res.Activity = &act
		return res, nil

	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
}

func (c *Conductor) getRecord(ctx context.Context, h hashing.Hash) (record.Record, error) {
	for _, agent := range c.Agents() {
		sc, ok := c.Chain(agent)
		if !ok {
			continue
		}
		r, err := sc.Get(ctx, h)
		if err == nil {
			return r.Privatized(), nil
		}
		if !errors.Is(err, chain.ErrNotInChain) {
			return record.Record{}, err
		}
	}
	return c.shard.GetRecord(ctx, h)
}
