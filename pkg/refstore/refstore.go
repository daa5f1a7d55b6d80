// Package refstore implements a persistent index of link reference
// definitions, keyed by normalized label. It lets tools offer and resolve
// labels defined anywhere in a workspace, not just in the open document.
package refstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"parsek.dev/pkg/md"
)

const bucketRef = "ref"

var initDB = map[string]func(tx *bolt.Tx) error{
	"initialize reference table": func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRef))
		return err
	},
}

// ErrNoDef is returned by Lookup when no definition has the given label.
var ErrNoDef = errors.New("no definition for label")

// Def is a stored link reference definition, along with the file that
// defines it.
type Def struct {
	Dest  string `json:"dest"`
	Title string `json:"title,omitempty"`
	File  string `json:"file,omitempty"`
}

// Store is the storage backend for link reference definitions. It is not
// safe to call Close while another method call is in progress.
type Store interface {
	// Add records a definition under the given label, which may be in any
	// of the forms accepted by reference links; it is normalized before
	// being used as the key. An existing definition with the same label is
	// overwritten.
	Add(label string, def Def) error
	// Lookup returns the definition for the given label, or ErrNoDef if
	// there is none.
	Lookup(label string) (Def, error)
	// Labels returns all labels that have a definition, sorted.
	Labels() ([]string, error)
	// IndexDocument records every link reference definition in doc, with
	// file as their source. Existing definitions with the same labels are
	// overwritten.
	IndexDocument(file string, doc *md.Document) error
	Close() error
}

type dbStore struct {
	db *bolt.DB
}

// NewStore creates a new Store backed by the named file, which is created
// if it does not exist.
func NewStore(dbname string) (Store, error) {
	db, err := bolt.Open(dbname, 0644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(db)
}

// NewStoreFromDB creates a new Store from an open bolt DB.
func NewStoreFromDB(db *bolt.DB) (Store, error) {
	st := &dbStore{db}
	err := db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := fn(tx); err != nil {
				return fmt.Errorf("failed to %s: %v", name, err)
			}
		}
		return nil
	})
	return st, err
}

func (s *dbStore) Close() error {
	return s.db.Close()
}

func marshalDef(def Def) ([]byte, error) {
	return json.Marshal(def)
}

func unmarshalDef(data []byte, def *Def) error {
	return json.Unmarshal(data, def)
}

func (s *dbStore) Add(label string, def Def) error {
	data, err := marshalDef(def)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRef))
		return b.Put([]byte(md.NormalizeLabel(label)), data)
	})
}

func (s *dbStore) Lookup(label string) (Def, error) {
	var def Def
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRef))
		v := b.Get([]byte(md.NormalizeLabel(label)))
		if v == nil {
			return ErrNoDef
		}
		return unmarshalDef(v, &def)
	})
	return def, err
}

func (s *dbStore) Labels() ([]string, error) {
	var labels []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRef))
		c := b.Cursor()
		// Bucket keys iterate in byte order, so the result is sorted.
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			labels = append(labels, string(k))
		}
		return nil
	})
	return labels, err
}

func (s *dbStore) IndexDocument(file string, doc *md.Document) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRef))
		// Keys in doc.Refs are already normalized by the parser.
		for label, ref := range doc.Refs {
			data, err := marshalDef(Def{Dest: ref.Dest, Title: ref.Title, File: file})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(label), data); err != nil {
				return err
			}
		}
		return nil
	})
}
