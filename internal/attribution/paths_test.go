package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Path
		ok   bool
	}{
		{
			path: "profiles/0100A1B2C3D4E000/1.0.0.json",
			want: Path{Bucket: Performance, Key: "0100A1B2C3D4E000-1.0.0", GroupID: "0100A1B2C3D4E000", Version: "1.0.0"},
			ok:   true,
		},
		{
			path: "profiles/0100A1B2C3D4E000/1.2.0$docked60.json",
			want: Path{Bucket: Performance, Key: "0100A1B2C3D4E000-1.2.0$docked60", GroupID: "0100A1B2C3D4E000", Version: "1.2.0", Suffix: "docked60"},
			ok:   true,
		},
		{
			path: "graphics/0100A1B2C3D4E000.json",
			want: Path{Bucket: Graphics, Key: "0100A1B2C3D4E000", GroupID: "0100A1B2C3D4E000"},
			ok:   true,
		},
		{
			path: "videos/0100A1B2C3D4E000.json",
			want: Path{Bucket: Videos, Key: "0100A1B2C3D4E000", GroupID: "0100A1B2C3D4E000"},
			ok:   true,
		},
		{
			path: "groups/zelda-collection.json",
			want: Path{Bucket: Groups, Key: "zelda-collection", GroupID: "zelda-collection"},
			ok:   true,
		},
		{path: "graphics/0100a1b2c3d4e000.json"},
		{path: "graphics/0100A1B2.json"},
		{path: "profiles/0100A1B2C3D4E000/notes.txt"},
		{path: "profiles/0100A1B2C3D4E000/1.0.0$.json"},
		{path: "profiles/0100A1B2C3D4E000/1.0.0$a$b.json"},
		{path: "README.md"},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.want, got, tt.path)
	}
}

func TestPerformanceKeyDistinguishesSuffix(t *testing.T) {
	g := "0100A1B2C3D4E000"
	v1, s1, ok := ParseProfileName("1.0.0.json")
	assert.True(t, ok)
	v2, s2, ok := ParseProfileName("1.0.0$variantA.json")
	assert.True(t, ok)

	assert.Equal(t, "1.0.0", v1)
	assert.Empty(t, s1)
	assert.Equal(t, "variantA", s2)
	assert.NotEqual(t, PerformanceKey(g, v1, s1), PerformanceKey(g, v2, s2))
	assert.Equal(t, PerformanceKey(g, v2, s2), PerformanceKey(g, v2, s2))
}

func TestPerformanceKeyHyphenVersusSuffix(t *testing.T) {
	g := "0100A1B2C3D4E000"
	dash, ok := Classify("profiles/" + g + "/1.0.0-beta.json")
	assert.True(t, ok)
	dollar, ok := Classify("profiles/" + g + "/1.0.0$beta.json")
	assert.True(t, ok)

	assert.Equal(t, "1.0.0-beta", dash.Version)
	assert.Equal(t, "beta", dollar.Suffix)
	assert.NotEqual(t, dash.Key, dollar.Key)

	v, s, ok := ParseProfileName("1.0.0-beta.json")
	assert.True(t, ok)
	assert.Equal(t, dash.Key, PerformanceKey(g, v, s))
	v, s, ok = ParseProfileName("1.0.0$beta.json")
	assert.True(t, ok)
	assert.Equal(t, dollar.Key, PerformanceKey(g, v, s))
}

func TestIsTitleID(t *testing.T) {
	assert.True(t, IsTitleID("0100A1B2C3D4E000"))
	assert.False(t, IsTitleID("README"))
	assert.False(t, IsTitleID("0100a1b2c3d4e000"))
	assert.False(t, IsTitleID("0100A1B2C3D4E0000"))
}

func TestParseProfileNameRejects(t *testing.T) {
	for _, name := range []string{"", ".json", "1.0.0.txt", "$x.json", "1.0.0$.json", "1.0.0$a$b.json"} {
		_, _, ok := ParseProfileName(name)
		assert.False(t, ok, name)
	}
}

func TestBaseID(t *testing.T) {
	assert.Equal(t, "0100A1B2C3D4E000", BaseID("0100A1B2C3D4E800"))
	assert.Equal(t, "0100A1B2C3D4E000", BaseID("0100A1B2C3D4E001"))
	assert.Equal(t, "short", BaseID("short"))
}
