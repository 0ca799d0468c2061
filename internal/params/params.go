// Package params defines the expression controls a prediction accepts, their
// declared ranges and defaults, and range validation. The ranges are tuned to
// the expression model and are intentionally asymmetric for some controls.
package params

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is wrapped by every validation failure.
var ErrOutOfRange = errors.New("value out of range")

// Set holds one value per expression control.
type Set struct {
	RotatePitch float64
	RotateYaw   float64
	RotateRoll  float64
	Blink       float64
	Eyebrow     float64
	Wink        float64
	PupilX      float64
	PupilY      float64
	Aaa         float64
	Eee         float64
	Woo         float64
	Smile       float64
	SrcRatio    float64
	SampleRatio float64
	CropFactor  float64
}

// Control describes a single expression control.
type Control struct {
	Name        string
	Min         float64
	Max         float64
	Default     float64
	Description string
	field       func(*Set) *float64
}

// Value reads the control from s.
func (c Control) Value(s *Set) float64 {
	return *c.field(s)
}

// Ptr returns the address of the control's field in s.
func (c Control) Ptr(s *Set) *float64 {
	return c.field(s)
}

// Check reports whether v lies inside the closed range.
func (c Control) Check(v float64) error {
	if math.IsNaN(v) || v < c.Min || v > c.Max {
		return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrOutOfRange, c.Name, v, c.Min, c.Max)
	}
	return nil
}

var controls = []Control{
	{"rotate_pitch", -20, 20, 0, "Rotation pitch: adjusts the up and down tilt of the face", func(s *Set) *float64 { return &s.RotatePitch }},
	{"rotate_yaw", -20, 20, 0, "Rotation yaw: adjusts the left and right turn of the face", func(s *Set) *float64 { return &s.RotateYaw }},
	{"rotate_roll", -20, 20, 0, "Rotation roll: adjusts the tilt of the face to the left or right", func(s *Set) *float64 { return &s.RotateRoll }},
	{"blink", -20, 5, 0, "Blink: controls the degree of eye closure", func(s *Set) *float64 { return &s.Blink }},
	{"eyebrow", -10, 15, 0, "Eyebrow: adjusts the height and shape of the eyebrows", func(s *Set) *float64 { return &s.Eyebrow }},
	{"wink", 0, 25, 0, "Wink: controls the degree of one eye closing", func(s *Set) *float64 { return &s.Wink }},
	{"pupil_x", -15, 15, 0, "Pupil X: adjusts the horizontal position of the pupils", func(s *Set) *float64 { return &s.PupilX }},
	{"pupil_y", -15, 15, 0, "Pupil Y: adjusts the vertical position of the pupils", func(s *Set) *float64 { return &s.PupilY }},
	{"aaa", -30, 120, 0, "AAA: controls the mouth opening for the 'aaa' sound", func(s *Set) *float64 { return &s.Aaa }},
	{"eee", -20, 15, 0, "EEE: controls the mouth shape for the 'eee' sound", func(s *Set) *float64 { return &s.Eee }},
	{"woo", -20, 15, 0, "WOO: controls the mouth shape for the 'woo' sound", func(s *Set) *float64 { return &s.Woo }},
	{"smile", -0.3, 1.3, 0, "Smile: adjusts the degree of smiling", func(s *Set) *float64 { return &s.Smile }},
	{"src_ratio", 0, 1, 1, "Source ratio", func(s *Set) *float64 { return &s.SrcRatio }},
	{"sample_ratio", -0.2, 1.2, 1, "Sample ratio", func(s *Set) *float64 { return &s.SampleRatio }},
	{"crop_factor", 1.5, 2.5, 1.7, "Crop factor", func(s *Set) *float64 { return &s.CropFactor }},
}

// Controls returns every control in declaration order.
func Controls() []Control {
	return append([]Control(nil), controls...)
}

// Lookup finds a control by its field name.
func Lookup(name string) (Control, bool) {
	for _, c := range controls {
		if c.Name == name {
			return c, true
		}
	}
	return Control{}, false
}

// Defaults returns a Set with every control at its declared default.
func Defaults() Set {
	var s Set
	for _, c := range controls {
		*c.field(&s) = c.Default
	}
	return s
}

// Validate checks every control and reports all violations at once.
func (s *Set) Validate() error {
	var errs []error
	for _, c := range controls {
		if err := c.Check(c.Value(s)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
