package store

import (
	"bytes"
	"fmt"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
)

var attributeNames = []string{"title", "description", "url", "image"}

// pyClass stands in for any class referenced by a payload. The bridge's
// own classes are not needed, only their instance attributes.
type pyClass struct {
	module string
	name   string
}

func (c *pyClass) PyNew(args ...interface{}) (interface{}, error) {
	return newPyObject(c), nil
}

func (c *pyClass) Call(args ...interface{}) (interface{}, error) {
	return newPyObject(c), nil
}

// pyObject is an instance of a pyClass with its restored attributes.
type pyObject struct {
	class *pyClass
	attrs map[string]interface{}
}

func newPyObject(c *pyClass) *pyObject {
	return &pyObject{class: c, attrs: make(map[string]interface{})}
}

// PySetState receives the BUILD state: an attribute dict, or a
// (dict, slots) tuple for classes with __slots__.
func (o *pyObject) PySetState(state interface{}) error {
	if tuple, ok := state.(*types.Tuple); ok {
		for i := 0; i < tuple.Len(); i++ {
			o.absorb(tuple.Get(i))
		}
		return nil
	}
	o.absorb(state)
	return nil
}

func (o *pyObject) PyDictSet(key, value interface{}) error {
	name, ok := key.(string)
	if !ok {
		return fmt.Errorf("non-string attribute name %v on %s.%s", key, o.class.module, o.class.name)
	}
	o.attrs[name] = value
	return nil
}

func (o *pyObject) PySetAttr(key string, value interface{}) error {
	o.attrs[key] = value
	return nil
}

func (o *pyObject) absorb(state interface{}) {
	for _, name := range attributeNames {
		if v, ok := lookup(state, name); ok {
			o.attrs[name] = v
		}
	}
}

func findClass(module, name string) (interface{}, error) {
	return &pyClass{module: module, name: name}, nil
}

func decodePicklePayload(payload []byte) (linkAttributes, bool) {
	u := pickle.NewUnpickler(bytes.NewReader(payload))
	u.FindClass = findClass

	root, err := u.Load()
	if err != nil {
		return linkAttributes{}, false
	}

	attributes, ok := lookup(root, "attributes")
	if !ok || attributes == nil {
		return linkAttributes{}, false
	}

	switch attributes.(type) {
	case *pyObject, *types.Dict:
	default:
		return linkAttributes{}, false
	}

	return linkAttributes{
		Title:       stringAttr(attributes, "title"),
		Description: stringAttr(attributes, "description"),
		URL:         stringAttr(attributes, "url"),
		Image:       stringAttr(attributes, "image"),
	}, true
}

func lookup(container interface{}, key string) (interface{}, bool) {
	switch c := container.(type) {
	case *types.Dict:
		return c.Get(key)
	case *pyObject:
		v, ok := c.attrs[key]
		return v, ok
	}
	return nil, false
}

func stringAttr(container interface{}, key string) string {
	v, _ := lookup(container, key)
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}
