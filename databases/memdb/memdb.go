// Package memdb is an in-memory implementation of the databases helper interfaces.
// Each collection serializes its own writes, which gives the same per-document
// atomicity the mongo server offers and nothing more: there are no cross-document
// or cross-collection transactions. It backs local runs (DB_URI=memory://) and the
// engine tests.
//
// Only the query operators $in, $nin and $lte and the update operators $set,
// $pull and $addToSet are understood, which is what the engine issues; anything
// else panics or fails. memdb is not a conformance substitute for mongod: array,
// type-ordering and index semantics are approximated, and code paths that matter
// in production still need a run against a real server.
package memdb

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/course-roster-api/databases"
)

// Scheme is the DB_URI scheme that selects the in-memory store
const Scheme = "memory://"

// Client hands out named in-memory databases
type Client struct {
	mu  sync.Mutex
	dbs map[string]*Database
}

// NewClient creates an empty in-memory client
func NewClient() *Client {
	return &Client{dbs: map[string]*Database{}}
}

// Database returns the named database, creating it on first use
func (c *Client) Database(name string) databases.DatabaseHelper {
	c.mu.Lock()
	defer c.mu.Unlock()
	db, ok := c.dbs[name]
	if !ok {
		db = newDatabase(c)
		c.dbs[name] = db
	}
	return db
}

// Ping always succeeds
func (c *Client) Ping(context.Context) error { return nil }

// Disconnect is a no-op
func (c *Client) Disconnect(context.Context) error { return nil }

// Database is a set of in-memory collections
type Database struct {
	mu     sync.Mutex
	client *Client
	colls  map[string]*Collection
}

// New creates a standalone in-memory database
func New() *Database {
	return newDatabase(NewClient())
}

func newDatabase(c *Client) *Database {
	return &Database{client: c, colls: map[string]*Collection{}}
}

// Collection implements databases.DatabaseHelper
func (d *Database) Collection(name string) databases.CollectionHelper {
	return d.C(name)
}

// C returns the concrete collection so tests can seed documents or inject failures
func (d *Database) C(name string) *Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.colls[name]
	if !ok {
		c = &Collection{name: name, failures: map[string][]error{}}
		d.colls[name] = c
	}
	return c
}

// Client implements databases.DatabaseHelper
func (d *Database) Client() databases.ClientHelper {
	return d.client
}

// Collection holds documents in insertion order
type Collection struct {
	mu       sync.Mutex
	name     string
	docs     []bson.Raw
	unique   [][]string
	failures map[string][]error
}

// FailNext makes the next call of op ("FindOne", "UpdateOne", ...) return err
func (c *Collection) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], err)
}

// Len returns the number of stored documents
func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Seed inserts documents without checking indexes or injected failures
func (c *Collection) Seed(docs ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		raw, err := toRaw(d)
		if err != nil {
			panic(fmt.Sprintf("memdb: seed %s: %v", c.name, err))
		}
		c.docs = append(c.docs, raw)
	}
}

// injected pops an injected failure for op. Callers must hold c.mu.
func (c *Collection) injected(op string) error {
	errs := c.failures[op]
	if len(errs) == 0 {
		return nil
	}
	c.failures[op] = errs[1:]
	return errs[0]
}

func (c *Collection) FindOne(_ context.Context, filter interface{}, _ ...*options.FindOneOptions) databases.SingleResultHelper {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("FindOne"); err != nil {
		return &singleResult{err: err}
	}
	f, err := toM(filter)
	if err != nil {
		return &singleResult{err: err}
	}
	for _, raw := range c.docs {
		if matches(raw, f) {
			return &singleResult{raw: raw}
		}
	}
	return &singleResult{err: mongo.ErrNoDocuments}
}

func (c *Collection) Find(_ context.Context, filter interface{}, _ ...*options.FindOptions) (databases.CursorHelper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("Find"); err != nil {
		return nil, err
	}
	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	var out []bson.Raw
	for _, raw := range c.docs {
		if matches(raw, f) {
			out = append(out, raw)
		}
	}
	return &cursor{docs: out}, nil
}

func (c *Collection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (databases.InsertOneResultHelper, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("InsertOne"); err != nil {
		return nil, err
	}
	m, err := toM(document)
	if err != nil {
		return nil, err
	}
	if _, ok := m["_id"]; !ok {
		m["_id"] = primitive.NewObjectID()
	}
	if c.violatesUnique(m, -1) {
		return nil, duplicateKey(c.name)
	}
	for _, raw := range c.docs {
		if reflect.DeepEqual(lookup(raw, "_id"), normalize(m["_id"])) {
			return nil, duplicateKey(c.name)
		}
	}
	c.docs = append(c.docs, mustRaw(m))
	return insertResult{id: m["_id"]}, nil
}

func (c *Collection) UpdateOne(_ context.Context, filter interface{}, update interface{}, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("UpdateOne"); err != nil {
		return nil, err
	}
	f, err := toM(filter)
	if err != nil {
		return nil, err
	}
	u, err := toM(update)
	if err != nil {
		return nil, err
	}
	for i, raw := range c.docs {
		if !matches(raw, f) {
			continue
		}
		before, err := toM(raw)
		if err != nil {
			return nil, err
		}
		m, _ := toM(raw)
		if err := applyUpdate(m, u); err != nil {
			return nil, err
		}
		res := &mongo.UpdateResult{MatchedCount: 1}
		if !reflect.DeepEqual(before, m) {
			c.docs[i] = mustRaw(m)
			res.ModifiedCount = 1
		}
		return res, nil
	}
	return &mongo.UpdateResult{}, nil
}

func (c *Collection) DeleteOne(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (int64, error) {
	return c.delete("DeleteOne", filter, 1)
}

func (c *Collection) DeleteMany(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (int64, error) {
	return c.delete("DeleteMany", filter, -1)
}

func (c *Collection) delete(op string, filter interface{}, limit int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected(op); err != nil {
		return 0, err
	}
	f, err := toM(filter)
	if err != nil {
		return 0, err
	}
	var deleted int64
	kept := c.docs[:0]
	for _, raw := range c.docs {
		if (limit < 0 || deleted < int64(limit)) && matches(raw, f) {
			deleted++
			continue
		}
		kept = append(kept, raw)
	}
	c.docs = kept
	return deleted, nil
}

// CreateIndexes records unique indexes so inserts can reject duplicates. TTL
// indexes are accepted but never swept; expiry is checked by the callers.
func (c *Collection) CreateIndexes(_ context.Context, models []mongo.IndexModel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.injected("CreateIndexes"); err != nil {
		return err
	}
	for _, model := range models {
		if model.Options == nil || model.Options.Unique == nil || !*model.Options.Unique {
			continue
		}
		keys, ok := model.Keys.(bson.D)
		if !ok {
			return fmt.Errorf("memdb: unsupported index keys %T", model.Keys)
		}
		var fields []string
		for _, k := range keys {
			fields = append(fields, k.Key)
		}
		c.unique = append(c.unique, fields)
	}
	return nil
}

// violatesUnique reports whether m collides with a stored document other than skip
func (c *Collection) violatesUnique(m bson.M, skip int) bool {
	for _, fields := range c.unique {
		for i, raw := range c.docs {
			if i == skip {
				continue
			}
			same := true
			for _, field := range fields {
				if !reflect.DeepEqual(normalize(m[field]), lookup(raw, field)) {
					same = false
					break
				}
			}
			if same {
				return true
			}
		}
	}
	return false
}

func duplicateKey(coll string) error {
	return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: fmt.Sprintf("E11000 duplicate key error collection: %s", coll),
	}}}
}

type singleResult struct {
	raw bson.Raw
	err error
}

func (sr *singleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	return bson.Unmarshal(sr.raw, v)
}

type insertResult struct {
	id interface{}
}

func (ir insertResult) Decode() interface{} {
	return ir.id
}

type cursor struct {
	docs []bson.Raw
}

// All decodes every document into results, which must point to a slice
func (cr *cursor) All(_ context.Context, results interface{}) error {
	rv := reflect.ValueOf(results)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Slice {
		return errors.New("memdb: results argument must be a pointer to a slice")
	}
	slice := rv.Elem()
	slice.SetLen(0)
	for _, raw := range cr.docs {
		elem := reflect.New(slice.Type().Elem())
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return err
		}
		slice.Set(reflect.Append(slice, elem.Elem()))
	}
	return nil
}

func (cr *cursor) Close(context.Context) error {
	return nil
}
