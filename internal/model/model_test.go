package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventTime(t *testing.T) {
	created := time.Date(2025, 9, 17, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, created, Record{CreatedAt: created}.EventTime())
	assert.Equal(t, created.Add(time.Hour), Record{CreatedAt: created, Timestamp: created.Add(time.Hour)}.EventTime())
	assert.True(t, Record{}.EventTime().IsZero())
}
