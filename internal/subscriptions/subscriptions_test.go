package subscriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddReportsFirstRegistrationOnly(t *testing.T) {
	m := New()

	count, isNew, err := m.Add("c1", "quote.MSFT")
	assert := assert.New(t)
	assert.NoError(err)
	assert.EqualValues(1, count)
	assert.True(isNew)

	count, isNew, err = m.Add("c1", "quote.MSFT")
	assert.NoError(err)
	assert.EqualValues(2, count)
	assert.False(isNew)
}

func TestRemoveReportsEverySuccessfulRemoval(t *testing.T) {
	m := New()
	_, _, _ = m.Add("c1", "quote.MSFT")
	_, _, _ = m.Add("c1", "quote.MSFT")

	remaining, removed := m.Remove("c1", "quote.MSFT", false)
	assert := assert.New(t)
	assert.EqualValues(1, remaining)
	assert.True(removed)

	remaining, removed = m.Remove("c1", "quote.MSFT", false)
	assert.EqualValues(0, remaining)
	assert.True(removed)
}

func TestRemoveReportsNotFoundWhenPairDidNotExist(t *testing.T) {
	m := New()

	remaining, removed := m.Remove("c1", "quote.MSFT", false)
	assert.EqualValues(t, 0, remaining)
	assert.False(t, removed)
}

func TestSubscribersOfMatchesWildcards(t *testing.T) {
	m := New()
	_, _, _ = m.Add("c1", "quote.*")
	assert.ElementsMatch(t, []string{"c1"}, m.SubscribersOf("quote.MSFT"))
	assert.Empty(t, m.SubscribersOf("trade.MSFT"))
}

func TestCloseRemovesEverySubscriptionAndReportsTopics(t *testing.T) {
	m := New()
	_, _, _ = m.Add("c1", "quote.MSFT")
	_, _, _ = m.Add("c1", "quote.GOOG")
	_, _, _ = m.Add("c2", "quote.MSFT")

	removed := m.Close("c1")
	assert.ElementsMatch(t, []string{"quote.MSFT", "quote.GOOG"}, removed)
	assert.ElementsMatch(t, []string{"c2"}, m.SubscribersOf("quote.MSFT"))
	assert.Empty(t, m.Close("c1"))
}
