package goveer

import (
	"fmt"
	"io"
	"os"
)

// PrintOpts controls how sequences are echoed by SequenceStream.Print.
type PrintOpts struct {
	Label  string    // prefix for each line
	Full   bool      // print the canonical (reconstructible) form
	Status bool      // append closed / pseudo-Anosov flags
	To     io.Writer // defaults to os.Stdout
}

// SequenceStream is a one-shot pipeline of sequences, in the style of a
// unix pipe: each stage consumes its upstream Outlet and feeds a new one.
type SequenceStream struct {
	Outlet chan Sequence
}

func NewSequenceStream() *SequenceStream {
	return &SequenceStream{
		Outlet: make(chan Sequence, 4),
	}
}

// PushSeq feeds seq into this stream, blocking until consumed.
func (stream *SequenceStream) PushSeq(seq Sequence) {
	stream.Outlet <- seq
}

// Close marks the end of this stream's input.
func (stream *SequenceStream) Close() {
	close(stream.Outlet)
}

// Print echoes passing sequences and forwards them downstream.
func (stream *SequenceStream) Print(opts PrintOpts) *SequenceStream {
	out := NewSequenceStream()
	w := opts.To
	if w == nil {
		w = os.Stdout
	}
	go func() {
		for seq := range stream.Outlet {
			line := seq.String()
			if opts.Full {
				line = seq.CanonicalString()
			}
			if opts.Status {
				switch {
				case seq.IsPseudoAnosov():
					line += "  [pA]"
				case seq.IsClosed():
					line += "  [closed]"
				}
			}
			fmt.Fprintf(w, "%s%s\n", opts.Label, line)
			out.Outlet <- seq
		}
		out.Close()
	}()
	return out
}

// Filter forwards only the sequences admitted by sel.
func (stream *SequenceStream) Filter(sel SequenceSelector) *SequenceStream {
	out := NewSequenceStream()
	go func() {
		for seq := range stream.Outlet {
			if sel.Admits(seq) {
				out.Outlet <- seq
			}
		}
		out.Close()
	}()
	return out
}

// AddTo inserts passing sequences into the given catalog, forwarding only
// the ones that were newly added.
func (stream *SequenceStream) AddTo(catalog Catalog) *SequenceStream {
	out := NewSequenceStream()
	go func() {
		for seq := range stream.Outlet {
			if catalog.TryAddSequence(seq) {
				out.Outlet <- seq
			}
		}
		out.Close()
	}()
	return out
}

// PullAll drains the stream and returns everything that came through.
func (stream *SequenceStream) PullAll() []Sequence {
	var all []Sequence
	for seq := range stream.Outlet {
		all = append(all, seq)
	}
	return all
}

// Count drains the stream, returning the number of sequences seen.
func (stream *SequenceStream) Count() int {
	n := 0
	for range stream.Outlet {
		n++
	}
	return n
}
