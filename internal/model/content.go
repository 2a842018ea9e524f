package model

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Blob keys, one JSON array per content type plus the settings object and
// the rate-limit map.
const (
	KeyFixtures   = "all-fixtures"
	KeyNews       = "all-news"
	KeyPlayers    = "all-players"
	KeySponsors   = "all-sponsors"
	KeyContacts   = "all-contacts"
	KeyTeams      = "all-teams"
	KeyGallery    = "all-gallery"
	KeyVPs        = "vps"
	KeyAdminUsers = "all-admin-users"
	KeySettings   = "current-settings"
	KeyRateLimits = "rate-limits"
	KeyActivity   = "activity-log"
)

// ErrValidation marks a create/update rejected for a missing or malformed
// required field. Handlers surface it as a 400 naming the field.
var ErrValidation = errors.New("validation failed")

func missingField(name string) error {
	return fmt.Errorf("%w: missing required field %q", ErrValidation, name)
}

// NewID returns a fresh record id: the current Unix-millisecond timestamp
// plus a short random suffix to keep ids unique within one millisecond.
func NewID(now time.Time) string {
	suffix := make([]byte, 3)
	rand.Read(suffix)
	return strconv.FormatInt(now.UnixMilli(), 10) + "-" + hex.EncodeToString(suffix)
}

// Item is the capability shared by every content record: it has a string
// id, a short human label for bulk-operation summaries, and knows its own
// required fields. All content types implement it on their pointer type so
// the generic store and bulk handler are written once.
type Item interface {
	ItemID() string
	SetItemID(id string)
	Label() string
	Validate() error
}

// Timestamps carries the audit fields stamped by the content store. They
// are embedded in every content type.
type Timestamps struct {
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (t *Timestamps) SetCreatedAt(at time.Time) { t.CreatedAt = &at }
func (t *Timestamps) SetUpdatedAt(at time.Time) { t.UpdatedAt = &at }

// ---------------------------------------------------------------------------
// Content types
// ---------------------------------------------------------------------------

// Fixture is a scheduled match.
type Fixture struct {
	ID              string `json:"id"`
	Team            string `json:"team"`
	Opponent        string `json:"opponent"`
	DateTime        string `json:"dateTime"`
	Venue           string `json:"venue"`
	Competition     string `json:"competition,omitempty"`
	Result          string `json:"result,omitempty"`
	Score           string `json:"score,omitempty"`
	Notes           string `json:"notes,omitempty"`
	CalendarEventID string `json:"calendarEventId,omitempty"`
	Timestamps
}

func (f *Fixture) ItemID() string      { return f.ID }
func (f *Fixture) SetItemID(id string) { f.ID = id }
func (f *Fixture) Label() string       { return f.Team + " v " + f.Opponent }

func (f *Fixture) Validate() error {
	switch {
	case f.Team == "":
		return missingField("team")
	case f.Opponent == "":
		return missingField("opponent")
	case f.DateTime == "":
		return missingField("dateTime")
	case f.Venue == "":
		return missingField("venue")
	}
	return nil
}

// NewsItem is a published club news article.
type NewsItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Author      string `json:"author,omitempty"`
	Category    string `json:"category,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	PublishedAt string `json:"publishedAt,omitempty"`
	Timestamps
}

func (n *NewsItem) ItemID() string      { return n.ID }
func (n *NewsItem) SetItemID(id string) { n.ID = id }
func (n *NewsItem) Label() string       { return n.Title }

func (n *NewsItem) Validate() error {
	switch {
	case n.Title == "":
		return missingField("title")
	case n.Content == "":
		return missingField("content")
	}
	return nil
}

// Player is a squad member profile.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	Position string `json:"position"`
	Number   int    `json:"number,omitempty"`
	Bio      string `json:"bio,omitempty"`
	PhotoURL string `json:"photoUrl,omitempty"`
	Timestamps
}

func (p *Player) ItemID() string      { return p.ID }
func (p *Player) SetItemID(id string) { p.ID = id }
func (p *Player) Label() string       { return p.Name }

func (p *Player) Validate() error {
	switch {
	case p.Name == "":
		return missingField("name")
	case p.Team == "":
		return missingField("team")
	case p.Position == "":
		return missingField("position")
	}
	return nil
}

// Sponsor is a club sponsor listing.
type Sponsor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Tier    string `json:"tier,omitempty"`
	LogoURL string `json:"logoUrl,omitempty"`
	Website string `json:"website,omitempty"`
	Timestamps
}

func (s *Sponsor) ItemID() string      { return s.ID }
func (s *Sponsor) SetItemID(id string) { s.ID = id }
func (s *Sponsor) Label() string       { return s.Name }

func (s *Sponsor) Validate() error {
	if s.Name == "" {
		return missingField("name")
	}
	return nil
}

// Contact is a club contact entry (officials, coaches, enquiries).
type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Timestamps
}

func (c *Contact) ItemID() string      { return c.ID }
func (c *Contact) SetItemID(id string) { c.ID = id }
func (c *Contact) Label() string       { return c.Name }

func (c *Contact) Validate() error {
	switch {
	case c.Name == "":
		return missingField("name")
	case c.Role == "":
		return missingField("role")
	}
	return nil
}

// Team is a club team (mens-1st, u16s, ...).
type Team struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	AgeGroup string `json:"ageGroup,omitempty"`
	League   string `json:"league,omitempty"`
	Coach    string `json:"coach,omitempty"`
	Timestamps
}

func (t *Team) ItemID() string      { return t.ID }
func (t *Team) SetItemID(id string) { t.ID = id }
func (t *Team) Label() string       { return t.Name }

func (t *Team) Validate() error {
	if t.Name == "" {
		return missingField("name")
	}
	return nil
}

// GalleryImage is a photo gallery entry. The image itself lives on an
// external image host; only the public URL is stored here.
type GalleryImage struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Caption    string `json:"caption,omitempty"`
	Album      string `json:"album,omitempty"`
	UploadedBy string `json:"uploadedBy,omitempty"`
	Timestamps
}

func (g *GalleryImage) ItemID() string      { return g.ID }
func (g *GalleryImage) SetItemID(id string) { g.ID = id }

func (g *GalleryImage) Label() string {
	if g.Caption != "" {
		return g.Caption
	}
	return g.URL
}

func (g *GalleryImage) Validate() error {
	if g.URL == "" {
		return missingField("url")
	}
	return nil
}

// VicePresident is an entry on the VP wall.
type VicePresident struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Since   string `json:"since,omitempty"`
	Message string `json:"message,omitempty"`
	Timestamps
}

func (v *VicePresident) ItemID() string      { return v.ID }
func (v *VicePresident) SetItemID(id string) { v.ID = id }
func (v *VicePresident) Label() string       { return v.Name }

func (v *VicePresident) Validate() error {
	if v.Name == "" {
		return missingField("name")
	}
	return nil
}
