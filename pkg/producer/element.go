package producer

// Element is the slice of a DOM element the producers look at: its id,
// its data-* attributes (without the "data-" prefix) and its parent.
type Element struct {
	ID     string
	Data   map[string]string
	Parent *Element
}

// Attr returns the data attribute name and whether it is set.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.Data == nil {
		return "", false
	}
	v, ok := e.Data[name]
	return v, ok
}

// ContentID returns the element's data-contentid attribute.
func (e *Element) ContentID() string {
	v, _ := e.Attr("contentid")
	return v
}

// Closest returns the nearest element, starting with e itself, that
// carries the data attribute name.
func (e *Element) Closest(name string) *Element {
	for el := e; el != nil; el = el.Parent {
		if _, ok := el.Attr(name); ok {
			return el
		}
	}
	return nil
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	if e == nil {
		return false
	}
	for el := other; el != nil; el = el.Parent {
		if el == e {
			return true
		}
	}
	return false
}
