package memdb

import (
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toM converts a filter, update or document into its bson.M form
func toM(v interface{}) (bson.M, error) {
	m := bson.M{}
	if v == nil {
		return m, nil
	}
	raw, ok := v.(bson.Raw)
	if !ok {
		b, err := bson.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("memdb: marshal %T: %w", v, err)
		}
		raw = b
	}
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("memdb: unmarshal: %w", err)
	}
	return m, nil
}

func toRaw(v interface{}) (bson.Raw, error) {
	b, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bson.Raw(b), nil
}

func mustRaw(m bson.M) bson.Raw {
	raw, err := toRaw(m)
	if err != nil {
		panic(fmt.Sprintf("memdb: %v", err))
	}
	return raw
}

// normalize round-trips a single value so it compares equal to stored values
func normalize(v interface{}) interface{} {
	m, err := toM(bson.M{"v": v})
	if err != nil {
		return v
	}
	return m["v"]
}

func lookup(raw bson.Raw, key string) interface{} {
	m, err := toM(raw)
	if err != nil {
		return nil
	}
	return m[key]
}

func asDoc(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case primitive.D:
		m := bson.M{}
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func isOperatorDoc(m bson.M) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matches(raw bson.Raw, filter bson.M) bool {
	doc, err := toM(raw)
	if err != nil {
		return false
	}
	for key, want := range filter {
		got, present := doc[key]
		if !matchValue(got, present, want) {
			return false
		}
	}
	return true
}

func matchValue(got interface{}, present bool, want interface{}) bool {
	ops, ok := asDoc(want)
	if !ok || !isOperatorDoc(ops) {
		return present && equal(got, want)
	}
	for op, arg := range ops {
		switch op {
		case "$in":
			if !present || !inList(got, arg) {
				return false
			}
		case "$nin":
			if present && inList(got, arg) {
				return false
			}
		case "$lte":
			x, ok := got.(primitive.DateTime)
			y, ok2 := arg.(primitive.DateTime)
			if !present || !ok || !ok2 || x > y {
				return false
			}
		default:
			panic("memdb: unsupported query operator " + op)
		}
	}
	return true
}

// equal follows mongo's array semantics: a scalar matches an array field that
// contains it
func equal(got, want interface{}) bool {
	if arr, ok := got.(primitive.A); ok {
		if _, wantArr := want.(primitive.A); !wantArr {
			for _, item := range arr {
				if reflect.DeepEqual(item, want) {
					return true
				}
			}
			return false
		}
	}
	return reflect.DeepEqual(got, want)
}

func inList(got, list interface{}) bool {
	items, ok := list.(primitive.A)
	if !ok {
		return false
	}
	for _, item := range items {
		if equal(got, item) {
			return true
		}
	}
	return false
}

func applyUpdate(doc, update bson.M) error {
	for op, arg := range update {
		fields, ok := asDoc(arg)
		if !ok {
			return fmt.Errorf("memdb: %s expects a document", op)
		}
		switch op {
		case "$set":
			for k, v := range fields {
				doc[k] = v
			}
		case "$pull":
			for k, cond := range fields {
				arr, ok := doc[k].(primitive.A)
				if !ok {
					continue
				}
				kept := primitive.A{}
				for _, item := range arr {
					if !matchValue(item, true, cond) {
						kept = append(kept, item)
					}
				}
				doc[k] = kept
			}
		case "$addToSet":
			for k, v := range fields {
				arr, _ := doc[k].(primitive.A)
				if !inList(v, arr) {
					arr = append(arr, v)
				}
				doc[k] = arr
			}
		default:
			return fmt.Errorf("memdb: unsupported update operator %s", op)
		}
	}
	return nil
}
