package attribution

import (
	"encoding/json"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func users(names ...string) mapset.Set[string] {
	return mapset.NewThreadUnsafeSet(names...)
}

func TestAddKeepsFirstSourcePR(t *testing.T) {
	m := NewContributorMap()
	p, ok := Classify("profiles/0100A1B2C3D4E000/1.0.0.json")
	require.True(t, ok)

	m.Add(p, users("alice"), "https://github.com/o/r/pull/1")
	m.Add(p, users("bob", "alice"), "https://github.com/o/r/pull/2")

	names, pr := m.PerformanceCredit(p.Key)
	assert.Equal(t, []string{"alice", "bob"}, names)
	assert.Equal(t, "https://github.com/o/r/pull/1", pr)
}

func TestAddFlatBuckets(t *testing.T) {
	m := NewContributorMap()
	g, _ := Classify("graphics/0100A1B2C3D4E000.json")
	v, _ := Classify("videos/0100A1B2C3D4E000.json")
	m.Add(g, users("carol"), "ignored")
	m.Add(g, users("dave"), "")
	m.Add(v, users("erin"), "")

	assert.Equal(t, []string{"carol", "dave"}, m.Contributors(Graphics, g.Key))
	assert.Equal(t, []string{"erin"}, m.Contributors(Videos, v.Key))
	assert.Equal(t, []string{}, m.Contributors(Groups, "nothing"))
}

func TestCloneIsIndependent(t *testing.T) {
	m := NewContributorMap()
	g, _ := Classify("graphics/0100A1B2C3D4E000.json")
	m.Add(g, users("carol"), "")

	c := m.Clone()
	c.Add(g, users("mallory"), "")

	assert.Equal(t, []string{"carol"}, m.Contributors(Graphics, g.Key))
	assert.Equal(t, []string{"carol", "mallory"}, c.Contributors(Graphics, g.Key))
}

func TestContributorMapJSONUsesSortedArrays(t *testing.T) {
	m := NewContributorMap()
	p, _ := Classify("profiles/0100A1B2C3D4E000/1.0.0.json")
	m.Add(p, users("zed", "amy"), "https://github.com/o/r/pull/7")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"performance": {"0100A1B2C3D4E000-1.0.0": {"contributors": ["amy", "zed"], "sourcePrUrl": "https://github.com/o/r/pull/7"}},
		"graphics": {}, "videos": {}, "groups": {}
	}`, string(data))

	revived := NewContributorMap()
	require.NoError(t, json.Unmarshal(data, revived))
	assert.True(t, revived.Performance[p.Key].Contributors.Contains("amy"))

	// Revived sets accept further merges.
	revived.Add(p, users("bea"), "")
	names, _ := revived.PerformanceCredit(p.Key)
	assert.Equal(t, []string{"amy", "bea", "zed"}, names)
}
