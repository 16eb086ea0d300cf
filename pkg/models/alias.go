package models

import "time"

// Alias type values
const (
	AliasTypeName    = "name"
	AliasTypeDBA     = "dba"
	AliasTypeFormer  = "former_name"
	AliasTypeTradeAs = "trade_as"
)

// Alias is an alternate name observed for a master entity. (master_id,
// alias_normalized) is unique; re-adding an existing alias is a no-op.
type Alias struct {
	ID              int64     `json:"id" db:"id"`
	MasterID        int64     `json:"master_id" db:"master_id"`
	AliasDisplay    string    `json:"alias_display" db:"alias_display"`
	AliasNormalized string    `json:"alias_normalized" db:"alias_normalized"`
	AliasType       string    `json:"alias_type" db:"alias_type"`
	Source          string    `json:"source" db:"source"`
	Confidence      float64   `json:"confidence" db:"confidence"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
