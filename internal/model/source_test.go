package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAcceptsStringOrList(t *testing.T) {
	var index map[string]Names
	require.NoError(t, json.Unmarshal([]byte(`{"A":"Solo","B":["First","Second"]}`), &index))
	assert.Equal(t, Names{"Solo"}, index["A"])
	assert.Equal(t, Names{"First", "Second"}, index["B"])

	assert.Error(t, json.Unmarshal([]byte(`{"C":42}`), &index))
}

func TestTitleDetailReleaseDate(t *testing.T) {
	tests := map[string]YMD{
		`{"releaseDate":20170303}`:     20170303,
		`{"releaseDate":"20170303"}`:   20170303,
		`{"releaseDate":"2017-03-03"}`: 20170303,
		`{"releaseDate":null}`:         0,
		`{}`:                           0,
	}
	for in, want := range tests {
		var d TitleDetail
		require.NoError(t, json.Unmarshal([]byte(in), &d), in)
		assert.Equal(t, want, d.ReleaseDate, in)
	}

	var d TitleDetail
	assert.Error(t, json.Unmarshal([]byte(`{"releaseDate":"soon"}`), &d))
}
