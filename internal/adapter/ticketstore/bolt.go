// Package ticketstore persists support tickets and their resolutions.
package ticketstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"copilot/internal/domain"
)

var (
	bucketTickets     = []byte("tickets")
	bucketResolutions = []byte("resolutions")
)

// BoltStore keeps tickets and resolutions in BoltDB, one bucket each,
// keyed by ticket ID.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the ticket database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open ticket db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketTickets, bucketResolutions} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// PutTicket stores or replaces a ticket.
func (s *BoltStore) PutTicket(_ context.Context, ticket domain.Ticket) error {
	if ticket.ID == "" {
		return fmt.Errorf("ticket id is required")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(ticket)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTickets).Put([]byte(ticket.ID), data)
	})
}

// FetchUnprocessed returns tickets without a stored resolution, sorted
// by ID so batch runs are reproducible. limit <= 0 returns all.
func (s *BoltStore) FetchUnprocessed(_ context.Context, limit int) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTickets)
		return b.ForEach(func(k, v []byte) error {
			var t domain.Ticket
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("%w: ticket %s: %v", domain.ErrDataIntegrity, k, err)
			}
			if !t.Processed {
				tickets = append(tickets, t)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

// WriteResult stores the resolution and flips the ticket to processed
// in one transaction.
func (s *BoltStore) WriteResult(_ context.Context, id string, res domain.Resolution) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTickets).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("ticket not found: %s", id)
		}
		var ticket domain.Ticket
		if err := json.Unmarshal(data, &ticket); err != nil {
			return fmt.Errorf("%w: ticket %s: %v", domain.ErrDataIntegrity, id, err)
		}

		res.TicketID = id
		resData, err := json.Marshal(res)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketResolutions).Put([]byte(id), resData); err != nil {
			return err
		}

		ticket.Processed = true
		ticketData, err := json.Marshal(ticket)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTickets).Put([]byte(id), ticketData)
	})
}

// GetResolution returns the stored resolution for a ticket.
func (s *BoltStore) GetResolution(_ context.Context, id string) (domain.Resolution, error) {
	var res domain.Resolution
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketResolutions).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("resolution not found: %s", id)
		}
		return json.Unmarshal(data, &res)
	})
	return res, err
}

// Counts returns total and processed ticket counts.
func (s *BoltStore) Counts(_ context.Context) (total, processed int, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTickets).ForEach(func(_, v []byte) error {
			var t domain.Ticket
			if err := json.Unmarshal(v, &t); err != nil {
				return nil
			}
			total++
			if t.Processed {
				processed++
			}
			return nil
		})
	})
	return total, processed, err
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
