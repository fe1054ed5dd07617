package catalog

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/cardmask/pkg/types"
)

const releaseDateLayout = "2006-01-02"

// rawSet mirrors one set entry of an MTGJSON AllSets/AllPrintings file. Both
// the older (border, onlineOnly, timeshifted) and newer (borderColor,
// isOnlineOnly, isTimeshifted) field names are accepted.
type rawSet struct {
	Code               string    `json:"code"`
	Name               string    `json:"name"`
	ReleaseDate        string    `json:"releaseDate"`
	Border             string    `json:"border"`
	BorderColor        string    `json:"borderColor"`
	OnlineOnly         bool      `json:"onlineOnly"`
	IsOnlineOnly       bool      `json:"isOnlineOnly"`
	MagicCardsInfoCode string    `json:"magicCardsInfoCode"`
	Cards              []rawCard `json:"cards"`
}

type rawCard struct {
	Name          string          `json:"name"`
	ASCIIName     string          `json:"asciiName"`
	Number        string          `json:"number"`
	MCINumber     string          `json:"mciNumber"`
	Layout        string          `json:"layout"`
	ColorIdentity []string        `json:"colorIdentity"`
	Power         json.RawMessage `json:"power"`
	Toughness     json.RawMessage `json:"toughness"`
	Loyalty       json.RawMessage `json:"loyalty"`
	Timeshifted   bool            `json:"timeshifted"`
	IsTimeshifted bool            `json:"isTimeshifted"`
	Border        string          `json:"border"`
	BorderColor   string          `json:"borderColor"`
}

// LoadFile reads an MTGJSON file. Paths ending in .zip are opened as an
// archive and the first .json member is decoded.
func LoadFile(path string) (*Catalog, error) {
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		return loadZip(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return Load(f)
}

func loadZip(path string) (*Catalog, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog archive: %w", err)
	}
	defer zr.Close()

	for _, member := range zr.File {
		if !strings.HasSuffix(strings.ToLower(member.Name), ".json") {
			continue
		}
		rc, err := member.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in archive: %w", member.Name, err)
		}
		defer rc.Close()
		return Load(rc)
	}
	return nil, fmt.Errorf("no json file found in %s", path)
}

// Load decodes MTGJSON set data from r. The top level is either a map of set
// code to set, or an object wrapping that map under "data".
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if inner, ok := top["data"]; ok && bytes.HasPrefix(bytes.TrimSpace(inner), []byte("{")) {
		top = nil
		if err := json.Unmarshal(inner, &top); err != nil {
			return nil, fmt.Errorf("failed to parse catalog data: %w", err)
		}
	}

	sets := make([]*types.SetRecord, 0, len(top))
	for key, raw := range top {
		if key == "meta" {
			continue
		}
		var rs rawSet
		if err := json.Unmarshal(raw, &rs); err != nil {
			return nil, fmt.Errorf("failed to parse set %s: %w", key, err)
		}
		if rs.Code == "" {
			rs.Code = key
		}
		set, err := convertSet(rs)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	return New(sets), nil
}

func convertSet(rs rawSet) (*types.SetRecord, error) {
	var released time.Time
	if rs.ReleaseDate != "" {
		t, err := time.Parse(releaseDateLayout, rs.ReleaseDate)
		if err != nil {
			return nil, fmt.Errorf("set %s: invalid release date %q: %w", rs.Code, rs.ReleaseDate, err)
		}
		released = t
	}

	set := types.NewSetRecord(rs.Code, rs.Name, released, types.Border(firstNonEmpty(rs.Border, rs.BorderColor)))
	set.OnlineOnly = rs.OnlineOnly || rs.IsOnlineOnly
	set.MagicCardsInfoCode = rs.MagicCardsInfoCode

	for _, rc := range rs.Cards {
		if rc.Name == "" {
			continue
		}
		set.AddCard(convertCard(rc))
	}
	return set, nil
}

func convertCard(rc rawCard) *types.CardRecord {
	layout := types.Layout(strings.ToLower(rc.Layout))
	if layout == "" {
		layout = types.LayoutNormal
	}

	ascii := rc.ASCIIName
	if ascii == "" {
		ascii = rc.Name
	}

	identity := make([]types.Color, 0, len(rc.ColorIdentity))
	for _, ci := range rc.ColorIdentity {
		identity = append(identity, types.Color(strings.ToUpper(ci)))
	}

	return &types.CardRecord{
		Name:          rc.Name,
		ASCIIName:     NormalizeName(ascii),
		Number:        rc.Number,
		MCINumber:     rc.MCINumber,
		Layout:        layout,
		ColorIdentity: identity,
		Power:         optionalString(rc.Power),
		Toughness:     optionalString(rc.Toughness),
		Loyalty:       optionalString(rc.Loyalty),
		Timeshifted:   rc.Timeshifted || rc.IsTimeshifted,
		BorderColor:   types.Border(firstNonEmpty(rc.Border, rc.BorderColor)),
	}
}

// optionalString turns a JSON string or number into *string; null or absent
// fields stay nil so presence checks remain meaningful.
func optionalString(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		s = strconv.FormatFloat(n, 'f', -1, 64)
		return &s
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}
