package sensor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// DefaultBaseURL is the dcstore catalog root.
const DefaultBaseURL = "http://dcstore.shenmo.tech/store"

// Locator identifies one app document in the catalog.
type Locator struct {
	BaseURL  string
	Category string
	Pkgname  string
}

// URL returns base_url/category/pkgname/app.json.
func (l Locator) URL() string {
	return fmt.Sprintf("%s/%s/%s/app.json",
		strings.TrimRight(l.BaseURL, "/"),
		url.PathEscape(l.Category),
		url.PathEscape(l.Pkgname))
}

// Key is the category/pkgname pair, used to namespace per-package state.
func (l Locator) Key() string {
	return l.Category + "/" + l.Pkgname
}

// Version is the last seen value of the Version field. The zero value
// means no version is known.
type Version struct {
	value string
	valid bool
}

func NewVersion(s string) Version {
	return Version{value: s, valid: true}
}

// VersionOf renders a decoded JSON scalar as a Version. nil gives the zero
// Version.
func VersionOf(v any) Version {
	switch t := v.(type) {
	case nil:
		return Version{}
	case string:
		return NewVersion(t)
	case json.Number:
		return NewVersion(t.String())
	case bool:
		return NewVersion(strconv.FormatBool(t))
	case float64:
		return NewVersion(strconv.FormatFloat(t, 'f', -1, 64))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return NewVersion(fmt.Sprint(v))
	}
	return NewVersion(string(b))
}

func (v Version) Valid() bool {
	return v.valid
}

func (v Version) Value() string {
	return v.value
}

func (v Version) String() string {
	if !v.valid {
		return "<none>"
	}
	return v.value
}

// Metadata is a decoded app.json document.
type Metadata map[string]any

// Version returns the document's Version field.
func (m Metadata) Version() Version {
	return VersionOf(m["Version"])
}

// PayloadFields lists the keys copied into a notification.
var PayloadFields = []string{
	"Name", "Version", "Filename", "Pkgname", "Author",
	"Contributor", "Website", "Update", "Size", "More",
}

// Payload is the event body emitted when a new version shows up.
type Payload struct {
	Name        any `json:"Name"`
	Version     any `json:"Version"`
	Filename    any `json:"Filename"`
	Pkgname     any `json:"Pkgname"`
	Author      any `json:"Author"`
	Contributor any `json:"Contributor"`
	Website     any `json:"Website"`
	Update      any `json:"Update"`
	Size        any `json:"Size"`
	More        any `json:"More"`
}

// Payload projects the document onto the notification fields. Every field
// must be present; a null value counts as present.
func (m Metadata) Payload() (Payload, error) {
	var missing []string
	for _, f := range PayloadFields {
		if _, ok := m[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Payload{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	return Payload{
		Name:        m["Name"],
		Version:     m["Version"],
		Filename:    m["Filename"],
		Pkgname:     m["Pkgname"],
		Author:      m["Author"],
		Contributor: m["Contributor"],
		Website:     m["Website"],
		Update:      m["Update"],
		Size:        m["Size"],
		More:        m["More"],
	}, nil
}
