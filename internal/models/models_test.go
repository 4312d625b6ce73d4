package models

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
)

func TestClassTranslation(t *testing.T) {
	if ClassFromID(0) != ClassPerson {
		t.Errorf("ClassFromID(0) = %v, want person", ClassFromID(0))
	}
	if ClassFromID(2) != ClassOther {
		t.Errorf("ClassFromID(2) = %v, want other", ClassFromID(2))
	}
	for _, label := range []string{"person", "Person", " PERSON "} {
		if ClassFromLabel(label) != ClassPerson {
			t.Errorf("ClassFromLabel(%q) = other, want person", label)
		}
	}
	if ClassFromLabel("car") != ClassOther {
		t.Error("ClassFromLabel(car) = person, want other")
	}
}

func TestDetectionJSON(t *testing.T) {
	var d Detection
	if err := json.Unmarshal([]byte(`{"class":"person","confidence":0.9,"bbox":{"x1":40,"y1":40,"x2":60,"y2":60}}`), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if d.Class != ClassPerson {
		t.Errorf("Class = %v, want person", d.Class)
	}
	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if want := `{"class":"person","confidence":0.9,"bbox":{"x1":40,"y1":40,"x2":60,"y2":60}}`; string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox{X1: 200, Y1: 200, X2: 220, Y2: 260}
	if c := b.Center(); c.X != 210 || c.Y != 230 {
		t.Errorf("Center() = %v, want (210,230)", c)
	}
	if b.Width() != 20 || b.Height() != 60 {
		t.Errorf("Width/Height = %v/%v, want 20/60", b.Width(), b.Height())
	}
	if err := b.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	bad := []BoundingBox{
		{X1: math.NaN(), X2: 1, Y2: 1},
		{X1: 0, Y1: 0, X2: math.Inf(1), Y2: 1},
		{X1: 10, Y1: 0, X2: 5, Y2: 1},
		{X1: 0, Y1: 10, X2: 5, Y2: 1},
	}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("Validate(%v) = nil, want error", b)
		}
	}
}
