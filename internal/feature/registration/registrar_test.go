package registration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestIsRegisteredForUnknownUser(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	gate := NewGate(coll, logrus.NewEntry(hookLogger))

	registered, err := gate.IsRegistered(context.Background(), 7)
	if err != nil {
		t.Fatalf("IsRegistered returned error: %v", err)
	}
	if registered {
		t.Fatalf("expected unknown user to be unregistered")
	}
}

func TestIsRegisteredForUnregisteredUser(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	coll.seed(t, bson.M{"chat_id": int64(42), "registered": false})

	gate := NewGate(coll, logrus.NewEntry(hookLogger))

	registered, err := gate.IsRegistered(context.Background(), 42)
	if err != nil {
		t.Fatalf("IsRegistered returned error: %v", err)
	}
	if registered {
		t.Fatalf("expected gate to fail before contact is shared")
	}
}

func TestIsRegisteredForRegisteredUser(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	coll.seed(t, bson.M{"chat_id": int64(42), "registered": true, "phone_number": "+15551234567"})

	gate := NewGate(coll, logrus.NewEntry(hookLogger))

	registered, err := gate.IsRegistered(context.Background(), 42)
	if err != nil {
		t.Fatalf("IsRegistered returned error: %v", err)
	}
	if !registered {
		t.Fatalf("expected gate to pass for registered user")
	}
}

func TestCompleteMarksUserRegistered(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	before := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	coll.seed(t, bson.M{"chat_id": int64(42), "registered": false, "last_interaction": before})

	gate := NewGate(coll, logrus.NewEntry(hookLogger))

	matched, err := gate.Complete(context.Background(), 42, "+15551234567")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !matched {
		t.Fatalf("expected update to match the seeded record")
	}

	doc := coll.docFor(t, 42)
	if doc["registered"] != true {
		t.Fatalf("expected registered=true, got %v", doc["registered"])
	}
	if doc["phone_number"] != "+15551234567" {
		t.Fatalf("expected phone number to be stored, got %v", doc["phone_number"])
	}

	touched, ok := doc["last_interaction"].(time.Time)
	if !ok {
		t.Fatalf("expected last_interaction to be time.Time, got %T", doc["last_interaction"])
	}
	if !touched.After(before) {
		t.Fatalf("expected last_interaction to advance beyond %v, got %v", before, touched)
	}
}

func TestCompleteIsIdempotentForIdenticalContact(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	coll.seed(t, bson.M{
		"chat_id":      int64(42),
		"registered":   true,
		"phone_number": "+15551234567",
	})

	gate := NewGate(coll, logrus.NewEntry(hookLogger))

	matched, err := gate.Complete(context.Background(), 42, "+15551234567")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !matched {
		t.Fatalf("expected re-shared identical contact to still count as success")
	}
}

func TestCompleteWithoutPriorRecord(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	coll := newFakeUserCollection(t)
	gate := NewGate(coll, logrus.NewEntry(hookLogger))

	matched, err := gate.Complete(context.Background(), 99, "+15550000000")
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if matched {
		t.Fatalf("expected no match when no record exists")
	}
}

func TestCompleteValidatesInput(t *testing.T) {
	hookLogger, _ := logtest.NewNullLogger()
	gate := NewGate(newFakeUserCollection(t), logrus.NewEntry(hookLogger))

	if _, err := gate.Complete(context.Background(), 0, "+1555"); err == nil {
		t.Fatalf("expected missing chat id to error")
	}

	if _, err := gate.Complete(context.Background(), 42, "  "); err == nil {
		t.Fatalf("expected blank phone number to error")
	}
}

type fakeUserCollection struct {
	t    *testing.T
	docs map[int64]bson.M
}

func newFakeUserCollection(t *testing.T) *fakeUserCollection {
	t.Helper()
	return &fakeUserCollection{
		t:    t,
		docs: make(map[int64]bson.M),
	}
}

func (f *fakeUserCollection) seed(t *testing.T, doc bson.M) {
	t.Helper()

	chatID, ok := doc["chat_id"].(int64)
	if !ok {
		t.Fatalf("seed document missing chat_id: %v", doc)
	}
	f.docs[chatID] = doc
}

func (f *fakeUserCollection) docFor(t *testing.T, chatID int64) bson.M {
	t.Helper()

	doc, ok := f.docs[chatID]
	if !ok {
		t.Fatalf("no document stored for chat_id=%d", chatID)
	}

	return doc
}

func (f *fakeUserCollection) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	filterDoc, ok := filter.(bson.M)
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, fmt.Errorf("unexpected filter type %T", filter), nil)
	}

	chatID, ok := filterDoc["chat_id"].(int64)
	if !ok {
		return mongo.NewSingleResultFromDocument(bson.D{}, fmt.Errorf("missing chat_id filter in %v", filterDoc), nil)
	}

	// NewSingleResultFromDocument discards the error when the document is
	// nil, so a placeholder document is required for Err() to carry it.
	doc, found := f.docs[chatID]
	if !found {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}

	if wantRegistered, ok := filterDoc["registered"].(bool); ok {
		if got, _ := doc["registered"].(bool); got != wantRegistered {
			return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
		}
	}

	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (f *fakeUserCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	filterDoc, ok := filter.(bson.M)
	if !ok {
		return nil, fmt.Errorf("unexpected filter type %T", filter)
	}

	chatID, ok := filterDoc["chat_id"].(int64)
	if !ok {
		return nil, fmt.Errorf("missing chat_id filter in %v", filterDoc)
	}

	doc, found := f.docs[chatID]
	if !found {
		return &mongo.UpdateResult{}, nil
	}

	updateDoc, ok := update.(bson.M)
	if !ok {
		return nil, fmt.Errorf("unexpected update type %T", update)
	}

	setDoc, _ := updateDoc["$set"].(bson.M)

	modified := int64(0)
	for k, v := range setDoc {
		if doc[k] != v {
			modified = 1
		}
		doc[k] = v
	}
	f.docs[chatID] = doc

	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: modified}, nil
}
