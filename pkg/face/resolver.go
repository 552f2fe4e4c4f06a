package face

import (
	"fmt"
	"strings"
	"time"
)

// Write is the latest value one source wrote to one field.
type Write struct {
	Source Source
	Value  float64
	At     time.Time
	Seq    uint64
}

// Resolver decides a field's value from the latest write of each source.
// writes is never empty.
type Resolver interface {
	Resolve(f Field, writes []Write, now time.Time) float64
}

// LastWriteWins takes the most recent write regardless of source.
type LastWriteWins struct{}

// Resolve implements Resolver.
func (LastWriteWins) Resolve(_ Field, writes []Write, _ time.Time) float64 {
	return latest(writes).Value
}

func latest(writes []Write) Write {
	w := writes[0]
	for _, x := range writes[1:] {
		if x.Seq > w.Seq {
			w = x
		}
	}
	return w
}

// Blend averages the latest value of each source by weight. Sources with no
// weight are ignored; if nothing is weighted the latest write wins.
// Fields not listed in Fields fall back to last-write-wins.
type Blend struct {
	Weights map[Source]float64
	Fields  []Field
}

// Resolve implements Resolver.
func (b Blend) Resolve(f Field, writes []Write, now time.Time) float64 {
	if !hasField(b.Fields, f) {
		return latest(writes).Value
	}
	var sum, total float64
	for _, w := range writes {
		weight := b.Weights[w.Source]
		if weight <= 0 {
			continue
		}
		sum += weight * w.Value
		total += weight
	}
	if total == 0 {
		return latest(writes).Value
	}
	return sum / total
}

// Priority lets the highest ranked source own a field while its last write
// is younger than Hold. Once every ranked write is stale the latest write
// wins. Unlisted sources rank below listed ones.
type Priority struct {
	Order  []Source
	Hold   time.Duration
	Fields []Field
}

// Resolve implements Resolver.
func (p Priority) Resolve(f Field, writes []Write, now time.Time) float64 {
	if !hasField(p.Fields, f) {
		return latest(writes).Value
	}
	for _, src := range p.Order {
		for _, w := range writes {
			if w.Source == src && now.Sub(w.At) <= p.Hold {
				return w.Value
			}
		}
	}
	return latest(writes).Value
}

func hasField(fields []Field, f Field) bool {
	if len(fields) == 0 {
		return true
	}
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

// DefaultHold is how long a speech write keeps ownership of eye openness
// under the "priority" policy.
const DefaultHold = 250 * time.Millisecond

// ParseResolver returns a named policy for eye openness:
//
//	"last-write" (default)  most recent writer wins
//	"blend"                 emotion and speech averaged equally
//	"priority"              speech owns eye openness while it keeps writing
func ParseResolver(name string) (Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "last-write", "lww":
		return LastWriteWins{}, nil
	case "blend":
		return Blend{
			Weights: map[Source]float64{SourceEmotion: 1, SourceSpeech: 1},
			Fields:  []Field{FieldEyeOpenness},
		}, nil
	case "priority":
		return Priority{
			Order:  []Source{SourceSpeech, SourceEmotion},
			Hold:   DefaultHold,
			Fields: []Field{FieldEyeOpenness},
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResolver, name)
}
