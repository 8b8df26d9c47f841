package core

import "github.com/google/uuid"

type EventRelayDestination int

const (
	EventRelayDestinationNextService EventRelayDestination = iota + 1 // Pass to the next service in the pipeline.
	EventRelayDestinationTopService                                   // Pass to the pipeline owner, bypassing the rest of the chain.
)

type EventPacket struct {
	Event       IEvent
	Destination EventRelayDestination
	Uid         string // Unique identifier for tracking the event packet.
	Relayer     string // Identifier of the handler that relayed the event.
	RunSeq      int64  // Sequence number of the pipeline run this packet belongs to.
}

func NewEventPacket(event IEvent, destination EventRelayDestination, relayer string) *EventPacket {
	uid := uuid.New().String() // Generate a unique identifier for the event packet.
	return &EventPacket{
		Event:       event,
		Destination: destination,
		Uid:         uid,
		Relayer:     relayer,
	}
}
