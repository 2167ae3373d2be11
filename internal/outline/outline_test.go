package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveAndReset(t *testing.T) {
	m := New([]string{"A", "B", "C"})
	m.Remove(1)
	assert.Equal(t, []string{"A", "C"}, m.Titles())

	m.Reset()
	assert.Equal(t, []string{"A", "B", "C"}, m.Titles())
}

func TestAddUpdateRemoveBounds(t *testing.T) {
	m := New([]string{"Facts"})
	m.Add()
	assert.Equal(t, []string{"Facts", ""}, m.Titles())

	m.Update(1, "Merits")
	assert.Equal(t, []string{"Facts", "Merits"}, m.Titles())

	m.Update(5, "ignored")
	m.Remove(-1)
	m.Remove(9)
	assert.Equal(t, []string{"Facts", "Merits"}, m.Titles())

	m.Remove(0)
	m.Remove(0)
	assert.Empty(t, m.Titles())
	m.Remove(0)
	assert.Empty(t, m.Titles())
}

func TestReorder(t *testing.T) {
	m := New([]string{"A", "B", "C"})
	m.Reorder([]string{"C", "A", "B"})
	assert.Equal(t, []string{"C", "A", "B"}, m.Titles())
}

func TestSerializeDropsEmptiesAndTrims(t *testing.T) {
	m := New([]string{"  Facts  ", "", "Merits", "   "})
	assert.Equal(t, "Facts\nMerits", m.Serialize())
}

func TestSerializeParseRoundTrip(t *testing.T) {
	m := New([]string{"I. Facts", "II. Merits", "III. Requests"})
	m.Add()
	m.Update(3, "  IV. Annexes ")
	parsed := ParseTitles(m.Serialize())
	assert.Equal(t, []string{"I. Facts", "II. Merits", "III. Requests", "IV. Annexes"}, parsed)

	again := ParseTitles(New(parsed).Serialize())
	assert.Equal(t, parsed, again)
}

func TestSerializeEmptyOutline(t *testing.T) {
	m := New(nil)
	assert.Empty(t, m.Serialize())
	assert.Empty(t, ParseTitles(""))
}

func TestHILTargetsFollowTitleList(t *testing.T) {
	m := New([]string{"Facts", "Merits", "Requests"})
	m.ToggleHILTarget("Merits")
	m.ToggleHILTarget("Facts")
	assert.Equal(t, []string{"Facts", "Merits"}, m.HILTargets(), "targets come back in list order")

	m.ToggleHILTarget("Unknown")
	assert.Equal(t, []string{"Facts", "Merits"}, m.HILTargets())

	m.Remove(0)
	assert.Equal(t, []string{"Merits"}, m.HILTargets(), "removing a title removes its target")

	m.Update(0, "Merits of the Case")
	assert.Empty(t, m.HILTargets(), "renaming a targeted title drops the stale target")

	m.ToggleHILTarget("Merits of the Case")
	require.Equal(t, []string{"Merits of the Case"}, m.HILTargets())
	m.ToggleHILTarget("Merits of the Case")
	assert.Empty(t, m.HILTargets())
}

func TestResetClearsHILTargets(t *testing.T) {
	m := New([]string{"A", "B"})
	m.ToggleHILTarget("A")
	m.Reset()
	assert.Empty(t, m.HILTargets())
}
