package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// PublishRun records one successful publish for the optional run history.
type PublishRun struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	StartedAt  time.Time `gorm:"index;not null"`
	FinishedAt time.Time `gorm:"not null"`

	SourceURL  string `gorm:"size:2048;not null;default:''"`
	Repository string `gorm:"size:256;not null"`
	Path       string `gorm:"size:1024;not null"`
	Branch     string `gorm:"size:256;not null;default:''"`

	FilesRead    int `gorm:"not null;default:0"`
	FilesSkipped int `gorm:"not null;default:0"`
	Collected    int `gorm:"not null;default:0"`
	Excluded     int `gorm:"not null;default:0"`
	Unverifiable int `gorm:"not null;default:0"`
	Published    int `gorm:"not null;default:0"`

	Created       bool   `gorm:"not null;default:false"`
	PreviousToken string `gorm:"size:64;not null;default:''"`
	ContentSHA    string `gorm:"size:64;not null;default:''"`
	CommitSHA     string `gorm:"size:64;not null;default:''"`

	Countries CountryCounts `gorm:"type:text"`
}

// CountryCount is one row of the per-country summary.
type CountryCount struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

// CountryCounts stores the country summary inside a JSON column.
type CountryCounts []CountryCount

// Value implements driver.Valuer.
func (c CountryCounts) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal([]CountryCount(c))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (c *CountryCounts) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*c = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("domain.CountryCounts: unsupported type %T", value)
	}

	if len(data) == 0 {
		*c = nil
		return nil
	}
	var parsed []CountryCount
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}
	*c = parsed
	return nil
}
