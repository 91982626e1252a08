package crm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketContacts = []byte("contacts")

// Store persists contact records across runs so repeated pipelines upsert
// the same audience instead of inventing a new one each time.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (or creates) the contact database at path
func OpenStore(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketContacts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveContact stores a contact keyed by email, overwriting any previous
// record for the same address.
func (s *Store) SaveContact(contact Contact) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(contact)
		if err != nil {
			return fmt.Errorf("failed to marshal contact: %w", err)
		}
		return tx.Bucket(bucketContacts).Put([]byte(contact.Email), data)
	})
}

// SaveContacts stores a batch of contacts in one transaction
func (s *Store) SaveContacts(contacts []Contact) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketContacts)
		for _, contact := range contacts {
			data, err := json.Marshal(contact)
			if err != nil {
				return fmt.Errorf("failed to marshal contact: %w", err)
			}
			if err := bucket.Put([]byte(contact.Email), data); err != nil {
				return fmt.Errorf("failed to store contact: %w", err)
			}
		}
		return nil
	})
}

// Contact looks up one stored contact by email. The second return value
// reports whether a record exists.
func (s *Store) Contact(email string) (Contact, bool, error) {
	var contact Contact
	found := false

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketContacts).Get([]byte(email))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &contact); err != nil {
			return fmt.Errorf("failed to unmarshal contact %s: %w", email, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Contact{}, false, err
	}

	return contact, found, nil
}

// Contacts returns every stored contact ordered by email
func (s *Store) Contacts() ([]Contact, error) {
	var contacts []Contact

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContacts).ForEach(func(k, v []byte) error {
			var contact Contact
			if err := json.Unmarshal(v, &contact); err != nil {
				return fmt.Errorf("failed to unmarshal contact %s: %w", k, err)
			}
			contacts = append(contacts, contact)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

// Count returns the number of stored contacts
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketContacts).Stats().KeyN
		return nil
	})
	return count, err
}
