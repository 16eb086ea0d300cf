package kafka

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ProviderRecordMessage is a scraped provider/contractor record published by a
// source bridge (licensing registry scraper, grants API poller, etc.)
type ProviderRecordMessage struct {
	SourceSystem     string `json:"source_system"`
	SourceIdentifier string `json:"source_identifier"`
	Name             string `json:"name"`
	Address          string `json:"address,omitempty"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	Zip              string `json:"zip,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	LicenseNumber    string `json:"license_number,omitempty"`
	LicenseType      string `json:"license_type,omitempty"`
	Capacity         *int   `json:"capacity,omitempty"`
	ScrapedAt        string `json:"scraped_at,omitempty"`
}

// ResolveInput maps the record onto the resolution engine's input
func (m *ProviderRecordMessage) ResolveInput() *models.ResolveInput {
	return &models.ResolveInput{
		Name:             m.Name,
		Address:          m.Address,
		City:             m.City,
		Zip:              m.Zip,
		Phone:            m.Phone,
		SourceSystem:     m.SourceSystem,
		SourceIdentifier: m.SourceIdentifier,
	}
}

// CreateRequest maps the record onto a master entity registration
func (m *ProviderRecordMessage) CreateRequest() *models.CreateMasterEntityRequest {
	return &models.CreateMasterEntityRequest{
		Name:             m.Name,
		Address:          m.Address,
		City:             m.City,
		State:            m.State,
		Zip:              m.Zip,
		Phone:            m.Phone,
		Email:            m.Email,
		LicenseNumber:    m.LicenseNumber,
		LicenseType:      m.LicenseType,
		Capacity:         m.Capacity,
		SourceSystem:     m.SourceSystem,
		SourceIdentifier: m.SourceIdentifier,
	}
}

// IncomingMessage wraps a raw Kafka message with parsed headers
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	// Parsed content
	Record *ProviderRecordMessage
}

// ParseRecord parses the message value as a provider record
func (m *IncomingMessage) ParseRecord() error {
	var record ProviderRecordMessage
	if err := json.Unmarshal(m.Value, &record); err != nil {
		return err
	}
	m.Record = &record
	return nil
}

// GetSourceSystem returns the record's source system, falling back to the
// message header bridges set for routing
func (m *IncomingMessage) GetSourceSystem() string {
	if m.Record != nil && m.Record.SourceSystem != "" {
		return m.Record.SourceSystem
	}
	return m.Headers["source_system"]
}

// GetSourceIdentifier returns the record's external identifier, falling back
// to the message key
func (m *IncomingMessage) GetSourceIdentifier() string {
	if m.Record != nil && m.Record.SourceIdentifier != "" {
		return m.Record.SourceIdentifier
	}
	return m.Key
}
