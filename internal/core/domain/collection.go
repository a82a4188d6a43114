package domain

import (
	"fmt"
	"strings"
)

// Place names the list of a Collection that holds a ticket.
type Place int

const (
	PlaceNone Place = iota
	PlaceOpen
	PlaceInProgress
	PlaceResolved
	PlaceOther
	PlaceArchived
)

func (p Place) String() string {
	switch p {
	case PlaceOpen:
		return string(BucketOpen)
	case PlaceInProgress:
		return string(BucketInProgress)
	case PlaceResolved:
		return string(BucketResolved)
	case PlaceOther:
		return "other"
	case PlaceArchived:
		return "archived"
	}
	return "none"
}

// PlaceOf computes where a ticket belongs. Archived wins over status;
// non-archived tickets whose status has no active bucket (Closed, Canceled
// or an unrecognized value) go to Other.
func PlaceOf(t Ticket) Place {
	if t.Archived {
		return PlaceArchived
	}
	switch BucketKeyOf(t.Status) {
	case BucketOpen:
		return PlaceOpen
	case BucketInProgress:
		return PlaceInProgress
	case BucketResolved:
		return PlaceResolved
	}
	return PlaceOther
}

// Collection is the client-side projection of the server's tickets. It is
// an immutable value: every method returns a new Collection and never
// writes to the slices of the receiver, so a snapshot handed to a reader
// is never torn by a later mutation. Callers must not modify the slices.
type Collection struct {
	Open       []Ticket `json:"open" yaml:"open"`
	InProgress []Ticket `json:"in progress" yaml:"in progress"`
	Resolved   []Ticket `json:"resolved" yaml:"resolved"`
	Other      []Ticket `json:"other" yaml:"other"`
	Archived   []Ticket `json:"archived" yaml:"archived"`
}

// NewCollection partitions tickets in server order. Duplicate IDs keep the
// first occurrence. Tickets whose status is not recognized are returned in
// unknown so the caller can report them; they are kept in Other.
func NewCollection(tickets []Ticket) (c Collection, unknown []Ticket) {
	seen := make(map[TicketID]struct{}, len(tickets))
	for _, t := range tickets {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		if _, ok := ParseStatus(string(t.Status)); !ok {
			unknown = append(unknown, t)
		}
		switch PlaceOf(t) {
		case PlaceOpen:
			c.Open = append(c.Open, t)
		case PlaceInProgress:
			c.InProgress = append(c.InProgress, t)
		case PlaceResolved:
			c.Resolved = append(c.Resolved, t)
		case PlaceOther:
			c.Other = append(c.Other, t)
		case PlaceArchived:
			c.Archived = append(c.Archived, t)
		}
	}
	return c, unknown
}

// List returns the slice for a place.
func (c Collection) List(p Place) []Ticket {
	switch p {
	case PlaceOpen:
		return c.Open
	case PlaceInProgress:
		return c.InProgress
	case PlaceResolved:
		return c.Resolved
	case PlaceOther:
		return c.Other
	case PlaceArchived:
		return c.Archived
	}
	return nil
}

// Bucket returns the active bucket for key, or nil.
func (c Collection) Bucket(key BucketKey) []Ticket {
	switch key {
	case BucketOpen:
		return c.Open
	case BucketInProgress:
		return c.InProgress
	case BucketResolved:
		return c.Resolved
	}
	return nil
}

func (c Collection) with(p Place, list []Ticket) Collection {
	switch p {
	case PlaceOpen:
		c.Open = list
	case PlaceInProgress:
		c.InProgress = list
	case PlaceResolved:
		c.Resolved = list
	case PlaceOther:
		c.Other = list
	case PlaceArchived:
		c.Archived = list
	}
	return c
}

var allPlaces = []Place{PlaceOpen, PlaceInProgress, PlaceResolved, PlaceOther, PlaceArchived}

// Locate returns the place and index of id.
func (c Collection) Locate(id TicketID) (Place, int) {
	for _, p := range allPlaces {
		for i, t := range c.List(p) {
			if t.ID == id {
				return p, i
			}
		}
	}
	return PlaceNone, -1
}

// Find returns the ticket with id.
func (c Collection) Find(id TicketID) (Ticket, bool) {
	p, i := c.Locate(id)
	if p == PlaceNone {
		return Ticket{}, false
	}
	return c.List(p)[i], true
}

// Contains reports whether id is anywhere in the collection.
func (c Collection) Contains(id TicketID) bool {
	p, _ := c.Locate(id)
	return p != PlaceNone
}

// Remove drops id from every list.
func (c Collection) Remove(id TicketID) Collection {
	for _, p := range allPlaces {
		list := c.List(p)
		if indexOf(list, id) >= 0 {
			c = c.with(p, without(list, id))
		}
	}
	return c
}

// Insert places t as a new arrival: any existing copy is dropped, then t is
// prepended to its bucket, or appended when it is archived.
func (c Collection) Insert(t Ticket) Collection {
	c = c.Remove(t.ID)
	p := PlaceOf(t)
	list := c.List(p)
	next := make([]Ticket, 0, len(list)+1)
	if p == PlaceArchived {
		next = append(append(next, list...), t)
	} else {
		next = append(append(next, t), list...)
	}
	return c.with(p, next)
}

// Upsert replaces the copy of t.ID with t. The ticket keeps its position
// when its place is unchanged; otherwise it migrates as Insert would.
func (c Collection) Upsert(t Ticket) Collection {
	return c.ReplaceID(t.ID, t)
}

// ReplaceID swaps the ticket stored under oldID for t, e.g. a placeholder
// for the server's record. Position is kept when the place is unchanged.
func (c Collection) ReplaceID(oldID TicketID, t Ticket) Collection {
	p, i := c.Locate(oldID)
	if p == PlaceNone || p != PlaceOf(t) {
		return c.Remove(oldID).Insert(t)
	}
	if oldID != t.ID {
		c = c.Remove(t.ID)
		p, i = c.Locate(oldID)
	}
	list := c.List(p)
	next := make([]Ticket, len(list))
	copy(next, list)
	next[i] = t
	return c.with(p, next)
}

// Active returns the non-archived tickets in display order.
func (c Collection) Active() []Ticket {
	out := make([]Ticket, 0, len(c.Open)+len(c.InProgress)+len(c.Resolved)+len(c.Other))
	out = append(out, c.Open...)
	out = append(out, c.InProgress...)
	out = append(out, c.Resolved...)
	return append(out, c.Other...)
}

// Len counts every ticket held.
func (c Collection) Len() int {
	return len(c.Open) + len(c.InProgress) + len(c.Resolved) + len(c.Other) + len(c.Archived)
}

// Count returns how many tickets carry id; anything but 0 or 1 breaks the
// collection invariant.
func (c Collection) Count(id TicketID) int {
	n := 0
	for _, p := range allPlaces {
		for _, t := range c.List(p) {
			if t.ID == id {
				n++
			}
		}
	}
	return n
}

// Validate checks that every ID occurs once and that every ticket sits in
// the list its status and archived flag select.
func (c Collection) Validate() error {
	var problems []string
	seen := make(map[TicketID]Place)
	for _, p := range allPlaces {
		for _, t := range c.List(p) {
			if prev, dup := seen[t.ID]; dup {
				problems = append(problems, fmt.Sprintf("ticket %s in both %s and %s", t.ID, prev, p))
				continue
			}
			seen[t.ID] = p
			if want := PlaceOf(t); want != p {
				problems = append(problems, fmt.Sprintf("ticket %s in %s, belongs in %s", t.ID, p, want))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("collection invariant violated: %s", strings.Join(problems, "; "))
	}
	return nil
}

func indexOf(list []Ticket, id TicketID) int {
	for i, t := range list {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func without(list []Ticket, id TicketID) []Ticket {
	out := make([]Ticket, 0, len(list))
	for _, t := range list {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
