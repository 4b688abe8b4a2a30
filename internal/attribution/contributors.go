package attribution

import (
	"encoding/json"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Credit is the attribution of a single performance profile
type Credit struct {
	Contributors mapset.Set[string]
	SourcePRURL  string
}

// ContributorMap records which GitHub users contributed to each data file
type ContributorMap struct {
	Performance map[string]*Credit
	Graphics    map[string]mapset.Set[string]
	Videos      map[string]mapset.Set[string]
	Groups      map[string]mapset.Set[string]
}

// NewContributorMap returns an empty map
func NewContributorMap() *ContributorMap {
	return &ContributorMap{
		Performance: make(map[string]*Credit),
		Graphics:    make(map[string]mapset.Set[string]),
		Videos:      make(map[string]mapset.Set[string]),
		Groups:      make(map[string]mapset.Set[string]),
	}
}

// Clone returns a deep copy so callers can extend it without touching the original
func (m *ContributorMap) Clone() *ContributorMap {
	out := NewContributorMap()
	for k, c := range m.Performance {
		out.Performance[k] = &Credit{Contributors: c.Contributors.Clone(), SourcePRURL: c.SourcePRURL}
	}
	cloneSets(out.Graphics, m.Graphics)
	cloneSets(out.Videos, m.Videos)
	cloneSets(out.Groups, m.Groups)
	return out
}

// Add merges users into the entry for p. The first source PR URL recorded for
// a performance profile is kept.
func (m *ContributorMap) Add(p Path, users mapset.Set[string], prURL string) {
	switch p.Bucket {
	case Performance:
		credit, ok := m.Performance[p.Key]
		if !ok {
			credit = &Credit{Contributors: mapset.NewThreadUnsafeSet[string]()}
			m.Performance[p.Key] = credit
		}
		credit.Contributors = credit.Contributors.Union(users)
		if credit.SourcePRURL == "" {
			credit.SourcePRURL = prURL
		}
	case Graphics:
		addSet(m.Graphics, p.Key, users)
	case Videos:
		addSet(m.Videos, p.Key, users)
	case Groups:
		addSet(m.Groups, p.Key, users)
	}
}

// PerformanceCredit returns the sorted contributors and source PR of a profile key
func (m *ContributorMap) PerformanceCredit(key string) ([]string, string) {
	credit, ok := m.Performance[key]
	if !ok {
		return []string{}, ""
	}
	return sorted(credit.Contributors), credit.SourcePRURL
}

// Contributors returns the sorted contributors of a flat bucket entry
func (m *ContributorMap) Contributors(b Bucket, key string) []string {
	var set mapset.Set[string]
	switch b {
	case Graphics:
		set = m.Graphics[key]
	case Videos:
		set = m.Videos[key]
	case Groups:
		set = m.Groups[key]
	case Performance:
		names, _ := m.PerformanceCredit(key)
		return names
	}
	return sorted(set)
}

// Sets are stored as sorted arrays on disk.

type creditJSON struct {
	Contributors []string `json:"contributors"`
	SourcePRURL  string   `json:"sourcePrUrl,omitempty"`
}

type contributorMapJSON struct {
	Performance map[string]creditJSON `json:"performance"`
	Graphics    map[string][]string   `json:"graphics"`
	Videos      map[string][]string   `json:"videos"`
	Groups      map[string][]string   `json:"groups"`
}

// MarshalJSON implements json.Marshaler
func (m *ContributorMap) MarshalJSON() ([]byte, error) {
	wire := contributorMapJSON{
		Performance: make(map[string]creditJSON, len(m.Performance)),
		Graphics:    toArrays(m.Graphics),
		Videos:      toArrays(m.Videos),
		Groups:      toArrays(m.Groups),
	}
	for k, c := range m.Performance {
		wire.Performance[k] = creditJSON{Contributors: sorted(c.Contributors), SourcePRURL: c.SourcePRURL}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *ContributorMap) UnmarshalJSON(data []byte) error {
	var wire contributorMapJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*m = *NewContributorMap()
	for k, c := range wire.Performance {
		m.Performance[k] = &Credit{
			Contributors: mapset.NewThreadUnsafeSet(c.Contributors...),
			SourcePRURL:  c.SourcePRURL,
		}
	}
	fromArrays(m.Graphics, wire.Graphics)
	fromArrays(m.Videos, wire.Videos)
	fromArrays(m.Groups, wire.Groups)
	return nil
}

func addSet(dst map[string]mapset.Set[string], key string, users mapset.Set[string]) {
	if cur, ok := dst[key]; ok {
		dst[key] = cur.Union(users)
		return
	}
	dst[key] = users.Clone()
}

func cloneSets(dst, src map[string]mapset.Set[string]) {
	for k, s := range src {
		dst[k] = s.Clone()
	}
}

func toArrays(src map[string]mapset.Set[string]) map[string][]string {
	out := make(map[string][]string, len(src))
	for k, s := range src {
		out[k] = sorted(s)
	}
	return out
}

func fromArrays(dst map[string]mapset.Set[string], src map[string][]string) {
	for k, names := range src {
		dst[k] = mapset.NewThreadUnsafeSet(names...)
	}
}

func sorted(s mapset.Set[string]) []string {
	if s == nil {
		return []string{}
	}
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
