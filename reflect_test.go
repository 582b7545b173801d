package hashcol

import (
	"testing"
	"time"
)

type postAttrs struct {
	ID          Value     `attr:"id"`
	Length      int       `attr:"length"`
	Name        string    `attr:"name"`
	LuckyNumber *int      `attr:"lucky_number"`
	Score       float64   `attr:"score,omitempty"`
	Draft       bool      `attr:"draft"`
	Tags        []string  `attr:"tags,omitempty"`
	PublishedAt time.Time `attr:"published_at,omitempty"`
	Ignored     string
	Skipped     string `attr:"-"`
}

func TestScan(t *testing.T) {
	m := newPostModel(t)
	rec := loadPost(t, m, map[string]any{
		"name":         "Hello",
		"lucky_number": 7,
		"draft":        true,
		"tags":         []any{"a", "b"},
		"published_at": "2024-01-31T23:59:59.123Z",
	})

	var attrs postAttrs
	ok(t, Scan(rec, &attrs))
	valEqual(t, attrs.ID, Int(1))
	deepEqual(t, attrs.Length, 5)
	deepEqual(t, attrs.Name, "Hello")
	if attrs.LuckyNumber == nil {
		t.Fatalf("LuckyNumber = nil, wanted 7")
	}
	deepEqual(t, *attrs.LuckyNumber, 7)
	deepEqual(t, attrs.Score, 0.0)
	deepEqual(t, attrs.Draft, true)
	deepEqual(t, attrs.Tags, []string{"a", "b"})
	if !attrs.PublishedAt.Equal(sampleTime) {
		t.Errorf("PublishedAt = %v, wanted %v", attrs.PublishedAt, sampleTime)
	}

	if err := Scan(rec, attrs); err == nil {
		t.Errorf("Scan(non-pointer) err = nil, wanted error")
	}

	var bad struct {
		Name int `attr:"name"`
	}
	if err := Scan(rec, &bad); err == nil {
		t.Errorf("Scan(text into int) err = nil, wanted error")
	}
}

func TestAssign(t *testing.T) {
	m := newPostModel(t)
	rec := must(m.New(nil))

	lucky := 3
	ok(t, Assign(rec, postAttrs{
		ID:          Text("p1"),
		Length:      10,
		Name:        "Hi",
		LuckyNumber: &lucky,
		PublishedAt: sampleTime,
		Ignored:     "x",
	}))
	valEqual(t, rec.ID(), Text("p1"))
	valEqual(t, rec.MustRead("length"), Int(10))
	valEqual(t, rec.MustRead("lucky_number"), Int(3))
	valEqual(t, rec.MustRead("draft"), Bool(false))
	valEqual(t, rec.MustRead("published_at"), Time(sampleTime))
	deepEqual(t, rec.HasAttribute("score"), false)
	deepEqual(t, rec.HasAttribute("tags"), false)
	deepEqual(t, rec.HasAttribute("Ignored"), false)

	var back postAttrs
	ok(t, Scan(rec, &back))
	deepEqual(t, back.Name, "Hi")
	deepEqual(t, back.Length, 10)
}
