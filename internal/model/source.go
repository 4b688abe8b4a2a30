package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Names is the ordered list of display names of a title; the first is primary.
// The title index stores either a single string or a list.
type Names []string

// UnmarshalJSON implements json.Unmarshaler
func (n *Names) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Names{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*n = list
	return nil
}

// YMD is a date encoded as the integer YYYYMMDD. It decodes from a number or
// from a "YYYYMMDD" / "YYYY-MM-DD" string.
type YMD int64

// UnmarshalJSON implements json.Unmarshaler
func (d *YMD) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*d = 0
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.ReplaceAll(raw, "-", "")
		if raw == "" {
			*d = 0
			return nil
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid release date %q", raw)
	}
	*d = YMD(v)
	return nil
}

// TitleDetail is the per-title metadata file output/titleid/<ID>.json
type TitleDetail struct {
	Publisher   string   `json:"publisher"`
	ReleaseDate YMD      `json:"releaseDate"`
	Size        string   `json:"size"`
	IconURL     string   `json:"iconUrl"`
	BannerURL   string   `json:"bannerUrl"`
	Screenshots []string `json:"screenshots"`
}

// VideoEntry is one element of videos/<GROUPID>.json
type VideoEntry struct {
	URL         string `json:"url"`
	Notes       string `json:"notes"`
	SubmittedBy string `json:"submittedBy"`
}
