package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexID is an identifier the Library API sends either as a JSON number or
// a JSON string. It is always compared in its decimal string form.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) String() string {
	return string(id)
}

// Int64 parses the id, returning 0 when it is not numeric.
func (id FlexID) Int64() int64 {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Envelope is the Library API's response wrapper
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// BilingualName is carried by most reference entities
type BilingualName struct {
	NameUz string `json:"name_uz"`
	NameRu string `json:"name_ru"`
}
