/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

// ShipTypeConfig is the reference row describing whether a hull is covered and what it pays.
type ShipTypeConfig struct {
	TypeID          int32               `json:"type_id"`
	TypeName        string              `json:"type_name"`
	GroupName       string              `json:"group_name"`
	BasePayout      decimal.Decimal     `json:"base_payout"`
	PolarizedPayout decimal.NullDecimal `json:"polarized_payout"`
	FCDiscretion    bool                `json:"fc_discretion"`
	Active          bool                `json:"active"`
}

func nonNegative(value interface{}) error {
	d, _ := value.(decimal.Decimal)
	if d.IsNegative() {
		return errors.New("must not be negative")
	}
	return nil
}

func (s ShipTypeConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.TypeID, validation.Required),
		validation.Field(&s.TypeName, validation.Required),
		validation.Field(&s.BasePayout, validation.By(nonNegative)),
	)
}

// PayoutFor returns the payout for a loss, taking the polarized payout when the fit was
// polarized and a polarized amount is configured.
func (s ShipTypeConfig) PayoutFor(polarized bool) decimal.Decimal {
	if polarized && s.PolarizedPayout.Valid {
		return s.PolarizedPayout.Decimal
	}
	return s.BasePayout
}
