package storage

import "liquidityEngine/internal/model"

// Sink is an append-only destination for engine event records.
type Sink interface {
	PutEventBatch(events []model.EventRecord) error
}

// Multi fans a batch out to several sinks, stopping at the first failure.
type Multi []Sink

func (m Multi) PutEventBatch(events []model.EventRecord) error {
	for _, sink := range m {
		if err := sink.PutEventBatch(events); err != nil {
			return err
		}
	}
	return nil
}
