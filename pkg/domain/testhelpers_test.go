package domain

import "strconv"

type intID int

func (i intID) String() string { return strconv.Itoa(int(i)) }

type widget struct {
	Key  intID
	Name string
	Tags []string
}

func (w *widget) ID() Identifier { return w.Key }

type typedWidget struct {
	widget
}

func (t *typedWidget) EntityType() EntityType { return "widget" }

func collect(seq func(func(Change) bool)) []Change {
	var out []Change
	for c := range seq {
		out = append(out, c)
	}
	return out
}

type named struct{ key string }

func (n named) ID() Identifier { return StringID(n.key) }
