package repository

import (
	"context"
	"testing"

	"github.com/BerniceZTT/welfare_end/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryDomainRecordStoreAssignsIdentity(t *testing.T) {
	store := NewMemoryDomainRecordStore()
	doc := models.DomainRecord{"id": "client-chosen", "name": "Kavya", "wardNo": "3"}

	stored, err := store.InsertRecord(context.Background(), models.RecordTypeStudents, doc)
	require.NoError(t, err)

	_, isObjectID := stored["_id"].(primitive.ObjectID)
	assert.True(t, isObjectID)
	assert.NotEqual(t, "client-chosen", stored.ID())
	assert.Equal(t, "Students", stored["recordType"])
	assert.Equal(t, "Kavya", stored.String("name"))
	assert.Contains(t, stored, "createdAt")
	assert.Equal(t, "client-chosen", doc["id"], "input document is not modified")
	assert.Equal(t, 1, store.Len())
}

func TestMemoryOperationLogStore(t *testing.T) {
	store := NewMemoryOperationLogStore()
	require.NoError(t, store.SaveOperationLog(context.Background(), &models.OperationLog{Method: "POST", Path: "/api/follow-ups"}))

	logs := store.Logs()
	require.Len(t, logs, 1)
	assert.False(t, logs[0].ID.IsZero())
	assert.Equal(t, "/api/follow-ups", logs[0].Path)
}
