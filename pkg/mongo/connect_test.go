package mongo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kfchess/identity/pkg/mongo"
)

func TestConnect_RequiresDatabase(t *testing.T) {
	_, err := mongo.Connect(context.Background(), mongo.Config{ConnectionURL: "mongodb://localhost:27017"})
	assert.ErrorIs(t, err, mongo.ErrEmptyDatabase)
}
