package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FileDescriptor is what the upload store returns for a saved file.
type FileDescriptor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Files is a JSONB list of stored attachments.
type Files []FileDescriptor

func (f *Files) Scan(src any) error {
	var raw []byte
	switch s := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("files: cannot scan %T", src)
	}
	if len(raw) == 0 {
		*f = nil
		return nil
	}
	return json.Unmarshal(raw, (*[]FileDescriptor)(f))
}

func (f Files) Value() (driver.Value, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]FileDescriptor(f))
}
