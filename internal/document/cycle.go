package document

import (
	"reflect"
	"slices"
)

// maxNesting matches the MongoDB limit on nested documents.
const maxNesting = 100

type node struct {
	addr uintptr
	typ  reflect.Type
}

// shape describes what walking a value found.
type shape struct {
	cyclic bool
	deep   bool
	// loops is set when some cycle passes through maps and slices only.
	// fmt prints nested pointers as addresses, so only such cycles make
	// fmt recurse forever.
	loops bool
}

func (s shape) encodable() bool { return !s.cyclic && !s.deep }

func (s shape) printable() bool { return !s.loops }

type walker struct {
	shape
	path  []node
	kinds []reflect.Kind
	done  map[node]bool
}

// inspect walks v, unexported fields included, and reports reference cycles
// and nesting beyond maxNesting.
func inspect(v any) shape {
	w := &walker{done: make(map[node]bool)}
	w.visit(reflect.ValueOf(v), 0)
	return w.shape
}

func (w *walker) visit(v reflect.Value, depth int) {
	if !v.IsValid() {
		return
	}
	if depth > maxNesting {
		w.deep = true
		return
	}

	switch v.Kind() {
	case reflect.Interface:
		w.visit(v.Elem(), depth)
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		w.enter(v, func() { w.visit(v.Elem(), depth) })
	case reflect.Map:
		if v.IsNil() || v.Len() == 0 {
			return
		}
		w.enter(v, func() {
			iter := v.MapRange()
			for iter.Next() {
				w.visit(iter.Key(), depth+1)
				w.visit(iter.Value(), depth+1)
			}
		})
	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return
		}
		w.enter(v, func() {
			for i := range v.Len() {
				w.visit(v.Index(i), depth+1)
			}
		})
	case reflect.Array:
		for i := range v.Len() {
			w.visit(v.Index(i), depth+1)
		}
	case reflect.Struct:
		for i := range v.NumField() {
			w.visit(v.Field(i), depth+1)
		}
	}
}

func (w *walker) enter(v reflect.Value, children func()) {
	n := node{addr: v.Pointer(), typ: v.Type()}
	if w.done[n] {
		return
	}
	for i, p := range w.path {
		if p == n {
			w.cyclic = true
			if !slices.Contains(w.kinds[i:], reflect.Pointer) {
				w.loops = true
			}
			return
		}
	}

	w.path = append(w.path, n)
	w.kinds = append(w.kinds, v.Kind())
	children()
	w.path = w.path[:len(w.path)-1]
	w.kinds = w.kinds[:len(w.kinds)-1]
	w.done[n] = true
}
