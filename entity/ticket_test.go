package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTicket_Valid(t *testing.T) {
	assert.True(t, Ticket{}.Valid())
	assert.False(t, Ticket{Used: true}.Valid())
	assert.False(t, Ticket{Refunded: true}.Valid())
}
