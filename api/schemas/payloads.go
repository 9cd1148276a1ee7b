package schemas

import (
	"errors"
	"fmt"
	"strings"
)

// PayloadKind tags the concrete variant of a ContentPayload.
type PayloadKind string

const (
	PayloadProfile  PayloadKind = "profile"
	PayloadSchedule PayloadKind = "schedule"
	PayloadDiary    PayloadKind = "diary"
)

// ContentPayload is the polymorphic content of one distribution request.
// The caller picks the variant; Validate runs before any dispatch.
type ContentPayload interface {
	Kind() PayloadKind
	// Capability returns the adapter capability needed to deliver this
	// payload.
	Capability() Capability
	Validate() error
}

// ProfileUpdate carries one cast's public profile.
type ProfileUpdate struct {
	CastID  int64  `json:"cast_id,omitempty"`
	Name    string `json:"name"`
	Age     int    `json:"age,omitempty"`
	Height  int    `json:"height,omitempty"`
	Bust    int    `json:"bust,omitempty"`
	Waist   int    `json:"waist,omitempty"`
	Hip     int    `json:"hip,omitempty"`
	Cup     string `json:"cup,omitempty"`
	Comment string `json:"comment,omitempty"`
}

func (p ProfileUpdate) Kind() PayloadKind      { return PayloadProfile }
func (p ProfileUpdate) Capability() Capability { return CapUpdateProfile }

func (p ProfileUpdate) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile update requires a cast name")
	}
	return nil
}

// ScheduleStatus is the availability state of one schedule slot.
type ScheduleStatus string

const (
	ScheduleAvailable ScheduleStatus = "available"
	ScheduleOff       ScheduleStatus = "off"
	ScheduleReserved  ScheduleStatus = "reserved"
)

// ScheduleEntry is one cast's working slot for one date.
type ScheduleEntry struct {
	CastID    int64          `json:"cast_id"`
	CastName  string         `json:"cast_name"`
	Date      string         `json:"date"` // YYYY-MM-DD
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time"`
	Status    ScheduleStatus `json:"status"`
}

// ScheduleUpdate replaces the published schedule with the given entries.
type ScheduleUpdate struct {
	Entries []ScheduleEntry `json:"entries"`
}

func (s ScheduleUpdate) Kind() PayloadKind      { return PayloadSchedule }
func (s ScheduleUpdate) Capability() Capability { return CapUpdateSchedule }

func (s ScheduleUpdate) Validate() error {
	if len(s.Entries) == 0 {
		return errors.New("schedule update requires at least one entry")
	}
	for i, e := range s.Entries {
		if e.CastName == "" {
			return fmt.Errorf("schedule entry %d has no cast name", i)
		}
		if e.Date == "" {
			return fmt.Errorf("schedule entry %d has no date", i)
		}
	}
	return nil
}

// DiaryPost is one photo-diary entry to publish.
type DiaryPost struct {
	CastID  int64    `json:"cast_id,omitempty"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

func (d DiaryPost) Kind() PayloadKind      { return PayloadDiary }
func (d DiaryPost) Capability() Capability { return CapPostDiary }

func (d DiaryPost) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("diary post requires a title")
	}
	if strings.TrimSpace(d.Content) == "" {
		return errors.New("diary post requires content")
	}
	return nil
}
