package cda

import "encoding/xml"

// Element is a schema-less XML node. Sections from different issuing
// countries nest and name their entry content differently, so the deep
// extractor walks this generic tree instead of binding to fixed structs.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []Element  `xml:",any"`
	Text     string     `xml:",chardata"`
}

// Name returns the local element name.
func (e *Element) Name() string {
	return e.XMLName.Local
}

// Attr returns the value of the named attribute, or "" if absent.
func (e *Element) Attr(name string) string {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present.
func (e *Element) HasAttr(name string) bool {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return true
		}
	}
	return false
}

// Child returns the first direct child with the given local name, or nil.
func (e *Element) Child(name string) *Element {
	for i := range e.Children {
		if e.Children[i].XMLName.Local == name {
			return &e.Children[i]
		}
	}
	return nil
}

// Walk visits e and every descendant in document order. The path passed to
// fn is the slash-joined chain of local names from the walk root.
func (e *Element) Walk(fn func(el *Element, path string)) {
	e.walk(e.XMLName.Local, fn)
}

func (e *Element) walk(path string, fn func(el *Element, path string)) {
	fn(e, path)
	for i := range e.Children {
		child := &e.Children[i]
		e.Children[i].walk(path+"/"+child.XMLName.Local, fn)
	}
}
