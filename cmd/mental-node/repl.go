package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/0xphantomotr/mental/pkg/coordinator"
	"github.com/0xphantomotr/mental/pkg/deck"
	"github.com/0xphantomotr/mental/pkg/journal"
)

const (
	prompt   = "mental> "
	deckSize = 52
	maxCards = 1 << 16
)

var errUnknownCommand = errors.New("unknown command")

// run drives the REPL until exit, a signal, or the session failing. End of
// input leaves the node running until it is signalled.
func run(ctx context.Context, n *node, in io.Reader, out io.Writer) error {
	go n.announce()

	r := newREPL(n, out)
	exited := make(chan struct{})
	go func() {
		if r.loop(ctx, in) {
			close(exited)
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-exited:
		return nil
	case <-n.session.Done():
		return n.session.Err()
	}
}

type repl struct {
	session *coordinator.Session
	journal *journal.Journal
	deck    deck.Deck
	out     io.Writer
}

func newREPL(n *node, out io.Writer) *repl {
	return &repl{session: n.session, journal: n.journal, deck: numberedDeck(deckSize), out: out}
}

// numberedDeck holds the cards 1 to n.
func numberedDeck(n int) deck.Deck {
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(i + 1)
	}
	return deck.DeckOf(values...)
}

// loop reports whether the user asked to exit.
func (r *repl) loop(ctx context.Context, in io.Reader) bool {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(r.out, prompt)
	for scanner.Scan() {
		quit, err := r.exec(ctx, scanner.Text())
		if quit {
			return true
		}
		if err != nil {
			fmt.Fprintf(r.out, "error: %v\n", err)
		}
		fmt.Fprint(r.out, prompt)
	}
	return false
}

func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	args, err := shellwords.Parse(strings.TrimSpace(line))
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}

	switch args[0] {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Fprintln(r.out, "commands: roster, state, lock, deck [n | set v...], draw <i>, shuffle, history [n], exit")
	case "state":
		fmt.Fprintln(r.out, r.session.State())
	case "roster":
		r.roster()
	case "lock":
		if err := r.session.LockPlayers(ctx); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "room locked")
	case "shuffle":
		if err := r.session.StartShuffle(ctx, r.deck); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "shuffle announced with %d cards\n", r.deck.Len())
	case "deck":
		return false, r.setDeck(args[1:])
	case "draw":
		if len(args) != 2 {
			return false, errors.New("draw: need a card index")
		}
		i, err := strconv.Atoi(args[1])
		if err != nil {
			return false, fmt.Errorf("draw: bad index %q", args[1])
		}
		c, err := r.deck.Draw(i)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, c)
	case "history":
		return false, r.history(args[1:])
	default:
		return false, fmt.Errorf("%w %q", errUnknownCommand, args[0])
	}
	return false, nil
}

func (r *repl) roster() {
	current, ok := r.session.Current()
	if !ok {
		fmt.Fprintln(r.out, "no room yet")
		return
	}
	fmt.Fprintln(r.out, describe(current))
	for _, p := range current.Players() {
		var marks []string
		if p.Same(current.Me()) {
			marks = append(marks, "me")
		}
		if p.Same(current.Owner()) {
			marks = append(marks, "owner")
		}
		if p.Connected() {
			marks = append(marks, "connected")
		}
		fmt.Fprintf(r.out, "  %d %s %s\n", p.ID(), p.Key(), strings.Join(marks, ","))
	}
}

// setDeck prints the deck with no arguments, builds cards 1 to n for "deck n"
// and takes explicit values for "deck set v...".
func (r *repl) setDeck(args []string) error {
	switch {
	case len(args) == 0:
		cards := r.deck.Cards()
		values := make([]string, len(cards))
		for i, c := range cards {
			values[i] = c.String()
		}
		fmt.Fprintf(r.out, "%d cards: %s\n", len(cards), strings.Join(values, " "))
		return nil
	case args[0] == "set":
		values := make([]*big.Int, len(args)-1)
		for i, a := range args[1:] {
			v, ok := new(big.Int).SetString(a, 10)
			if !ok {
				return fmt.Errorf("deck: %w: %q", deck.ErrInvalidNumber, a)
			}
			values[i] = v
		}
		d, err := deck.NewDeck(values)
		if err != nil {
			return err
		}
		r.deck = d
	default:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > maxCards {
			return fmt.Errorf("deck: bad size %q", args[0])
		}
		r.deck = numberedDeck(n)
	}
	fmt.Fprintf(r.out, "deck has %d cards\n", r.deck.Len())
	return nil
}

func (r *repl) history(args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("history: bad count %q", args[0])
		}
		limit = n
	}
	entries, err := r.journal.Entries()
	if err != nil {
		return err
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[len(entries)-limit:]
	}
	for _, e := range entries {
		fmt.Fprintf(r.out, "  #%d %s %s locked=%t\n",
			e.Seq, e.RecordedAt.Format("15:04:05.000"), strings.Join(e.Players, ","), e.Locked)
	}
	return nil
}
