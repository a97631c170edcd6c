package storage

import (
	"fmt"
)

// Keys generates Redis keys with consistent naming
type Keys struct {
	prefix string
}

// NewKeys creates a new Keys generator
func NewKeys(prefix string) *Keys {
	return &Keys{prefix: prefix}
}

// History returns the key for the list of recent result IDs, newest first
func (k *Keys) History() string {
	return fmt.Sprintf("%shistory", k.prefix)
}

// Result returns the key for a stored analysis result
func (k *Keys) Result(id string) string {
	return fmt.Sprintf("%sresult:%s", k.prefix, id)
}

// QuotaMinute returns the key counting analyses in the current minute window
func (k *Keys) QuotaMinute() string {
	return fmt.Sprintf("%squota:minute", k.prefix)
}

// QuotaHour returns the key counting analyses in the current hour window
func (k *Keys) QuotaHour() string {
	return fmt.Sprintf("%squota:hour", k.prefix)
}
