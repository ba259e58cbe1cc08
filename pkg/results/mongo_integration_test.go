//go:build integration

package results

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
)

func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("PYVALIDATE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PYVALIDATE_TEST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := fmt.Sprintf("pyvalidate_test_%d", time.Now().UnixNano())
	s, err := OpenMongo(ctx, uri, db)
	if err != nil {
		t.Fatalf("OpenMongo() error: %v", err)
	}
	defer func() {
		s.client.Database(db).Drop(context.Background())
		s.Close()
	}()

	exerciseStore(t, s)
}
