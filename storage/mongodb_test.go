package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// TestMongoStoreInterfaceCompliance verifies MongoStore implements PasteStore interface at compile time
func TestMongoStoreInterfaceCompliance(t *testing.T) {
	var _ PasteStore = (*MongoStore)(nil)
}

func TestAvailableFilter(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := availableFilter("abcd1234", now)

	assert.Equal(t, "abcd1234", filter["_id"])

	clauses, ok := filter["$and"].(bson.A)
	require.True(t, ok)
	require.Len(t, clauses, 2)

	expiry := clauses[0].(bson.M)["$or"].(bson.A)
	assert.Equal(t, bson.M{"expires_at": nil}, expiry[0])
	assert.Equal(t, bson.M{"expires_at": bson.M{"$gte": now}}, expiry[1])

	views := clauses[1].(bson.M)["$or"].(bson.A)
	assert.Equal(t, bson.M{"max_views": nil}, views[0])
	assert.Equal(t,
		bson.M{"$expr": bson.M{"$lt": bson.A{"$views_count", "$max_views"}}},
		views[1])
}

func TestAvailableFilter_Marshals(t *testing.T) {
	_, err := bson.Marshal(availableFilter("abcd1234", time.Now()))
	assert.NoError(t, err)
}
