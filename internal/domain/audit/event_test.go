package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	docID := uuid.New()
	userID := uuid.New()

	e := NewEvent(EventTypeCodesNotFound, EntityDocument, docID, &userID, map[string]interface{}{"codes": []string{"X"}})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, docID.String(), e.EntityID)
	assert.Equal(t, userID.String(), e.UserID)
	assert.Equal(t, EntityDocument, e.Entity)
	assert.False(t, e.CreatedAt.IsZero())

	anonymous := NewEvent(EventTypeVerifyPayment, EntityPayment, uuid.New(), nil, nil)
	assert.Empty(t, anonymous.UserID)
}
