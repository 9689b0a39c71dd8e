// Package command defines the drawing commands produced from gestures and
// the dispatcher that forwards them to a canvas.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/madhubani/internal/detector"
	"github.com/ayusman/madhubani/internal/gesture"
)

// Kind is the variant of a drawing command.
type Kind int

const (
	Idle Kind = iota
	StrokeStart
	StrokePoint
	StrokeEnd
	Erase
	Undo
	Redo
	Clear
	CycleColor
)

var kindNames = [...]string{
	"idle", "stroke_start", "stroke_point", "stroke_end",
	"erase", "undo", "redo", "clear", "cycle_color",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return Idle, fmt.Errorf("unknown command %q", s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Positional reports whether commands of this kind carry a position.
func (k Kind) Positional() bool {
	switch k {
	case StrokeStart, StrokePoint, Erase:
		return true
	}
	return false
}

// Command is one discrete drawing event. It is an immutable value.
type Command struct {
	Kind Kind `json:"kind"`
	// Position is in normalized image coordinates; valid when HasPosition.
	Position    detector.Point3D `json:"-"`
	HasPosition bool             `json:"-"`
	// Frame is the index of the frame that produced the command.
	Frame uint64 `json:"frame"`
	// Gesture is the gesture that produced the command.
	Gesture gesture.Kind `json:"gesture,omitempty"`
}

// At returns a command of kind k at p.
func At(k Kind, p detector.Point3D) Command {
	return Command{Kind: k, Position: p, HasPosition: true}
}

// Of returns a command of kind k without a position.
func Of(k Kind) Command {
	return Command{Kind: k}
}

func (c Command) String() string {
	if c.HasPosition {
		return fmt.Sprintf("%s(%.3f,%.3f)", c.Kind, c.Position.X, c.Position.Y)
	}
	return c.Kind.String()
}

type wireCommand struct {
	Kind    Kind         `json:"kind"`
	X       *float64     `json:"x,omitempty"`
	Y       *float64     `json:"y,omitempty"`
	Frame   uint64       `json:"frame"`
	Gesture gesture.Kind `json:"gesture,omitempty"`
}

// MarshalJSON flattens the position into x and y fields.
func (c Command) MarshalJSON() ([]byte, error) {
	w := wireCommand{Kind: c.Kind, Frame: c.Frame, Gesture: c.Gesture}
	if c.HasPosition {
		x, y := c.Position.X, c.Position.Y
		w.X, w.Y = &x, &y
	}
	return json.Marshal(w)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Command) UnmarshalJSON(b []byte) error {
	var w wireCommand
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = Command{Kind: w.Kind, Frame: w.Frame, Gesture: w.Gesture}
	if w.X != nil && w.Y != nil {
		c.Position = detector.Point3D{X: *w.X, Y: *w.Y}
		c.HasPosition = true
	}
	return nil
}
