package indexes_test

import (
	"testing"

	"github.com/dalemusser/divehub/internal/app/system/indexes"
	"github.com/dalemusser/divehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestEnsureAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("First EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesAccountIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	cur, err := db.Collection("accounts").Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	indexNames := make(map[string]bool)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if name, ok := idx["name"].(string); ok {
			indexNames[name] = true
		}
	}

	for _, want := range []string{"uniq_accounts_email", "uniq_accounts_pin_index", "idx_accounts_status_created_id"} {
		if !indexNames[want] {
			t.Errorf("missing index %s", want)
		}
	}
}

func TestEnsureAll_PinIndexUniqueOnlyWhenSet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	c := db.Collection("accounts")
	// Two accounts without a pin index must coexist.
	if _, err := c.InsertOne(ctx, bson.M{"_id": "a", "email": "a@example.com"}); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := c.InsertOne(ctx, bson.M{"_id": "b", "email": "b@example.com"}); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	if _, err := c.InsertOne(ctx, bson.M{"_id": "c", "email": "c@example.com", "pin_index": "x"}); err != nil {
		t.Fatalf("insert c: %v", err)
	}
	if _, err := c.InsertOne(ctx, bson.M{"_id": "d", "email": "d@example.com", "pin_index": "x"}); err == nil {
		t.Fatal("expected duplicate pin_index to be rejected")
	}
}
