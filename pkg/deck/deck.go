// Package deck models the cards a room plays with. A card's value is an
// arbitrary-precision integer so that encrypted values fit unchanged.
package deck

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidNumber = errors.New("deck: invalid card value")
	ErrNoSuchCard    = errors.New("deck: no such card")
)

type Card struct {
	v *big.Int
}

// NewCard copies v; a nil value is rejected.
func NewCard(v *big.Int) (Card, error) {
	if v == nil {
		return Card{}, ErrInvalidNumber
	}
	return Card{v: new(big.Int).Set(v)}, nil
}

func CardOf(v int64) Card {
	return Card{v: big.NewInt(v)}
}

// Value returns a copy of the card's value.
func (c Card) Value() *big.Int {
	if c.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(c.v)
}

func (c Card) Equal(other Card) bool {
	return c.Value().Cmp(other.Value()) == 0
}

func (c Card) String() string { return c.Value().String() }

// MarshalJSON writes the value as a decimal string.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Value().String())
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	c.v = v
	return nil
}

// Deck is an ordered, immutable list of cards.
type Deck struct {
	cards []Card
}

func NewDeck(values []*big.Int) (Deck, error) {
	cards := make([]Card, len(values))
	for i, v := range values {
		c, err := NewCard(v)
		if err != nil {
			return Deck{}, fmt.Errorf("card %d: %w", i, err)
		}
		cards[i] = c
	}
	return Deck{cards: cards}, nil
}

func DeckOf(values ...int64) Deck {
	cards := make([]Card, len(values))
	for i, v := range values {
		cards[i] = CardOf(v)
	}
	return Deck{cards: cards}
}

func (d Deck) Len() int { return len(d.cards) }

func (d Deck) Cards() []Card {
	out := make([]Card, len(d.cards))
	copy(out, d.cards)
	return out
}

// Draw returns the card at index without removing it.
func (d Deck) Draw(index int) (Card, error) {
	if index < 0 || index >= len(d.cards) {
		return Card{}, fmt.Errorf("%w: index %d of %d", ErrNoSuchCard, index, len(d.cards))
	}
	return d.cards[index], nil
}

func (d Deck) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.cards)
}

func (d *Deck) UnmarshalJSON(data []byte) error {
	var cards []Card
	if err := json.Unmarshal(data, &cards); err != nil {
		return err
	}
	d.cards = cards
	return nil
}
